package rbac

import "testing"

func TestEveryRoleHasPermissions(t *testing.T) {
	for _, role := range AllRoles {
		perms := Permissions(role)
		if len(perms) == 0 {
			t.Fatalf("role %q has no permissions", role)
		}
		if Describe(role) == "" {
			t.Fatalf("role %q has no description", role)
		}
		for _, p := range perms {
			if !Can(role, p) {
				t.Fatalf("role %q lists %q but Can disagrees", role, p)
			}
		}
	}
	if len(rolePermissions) != len(AllRoles) {
		t.Fatalf("mapping has %d roles, AllRoles has %d", len(rolePermissions), len(AllRoles))
	}
}

func TestPermissionsAreKnown(t *testing.T) {
	known := map[string]bool{}
	for _, p := range allPermissions {
		known[p] = true
	}
	for role, perms := range rolePermissions {
		for _, p := range perms {
			if !known[p] {
				t.Fatalf("role %q has unknown permission %q", role, p)
			}
		}
	}
}

func TestAdminHoldsEverything(t *testing.T) {
	for _, p := range allPermissions {
		if !Can(RoleAdmin, p) {
			t.Fatalf("admin lacks %q", p)
		}
	}
}

func TestLeastPrivilege(t *testing.T) {
	cases := []struct {
		role, perm string
		want       bool
	}{
		{RoleUser, ContractsCreate, false},
		{RolePromoter, TemplatesCreate, false},
		{RoleCompany, TemplatesApprove, false},
		{RoleCompany, UsersManage, false},
		{RolePromoter, ContractsCreate, true},
		{"ghost", ContractsRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestUnknownRoleIsEmptyNotNil(t *testing.T) {
	if p := Permissions("ghost"); p == nil || len(p) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", p)
	}
	if SelfAssignable(RoleAdmin) {
		t.Fatalf("admin must not be self-assignable")
	}
}
