// Package rbac holds the static role to permission mapping.
package rbac

import "sort"

const (
	RoleAdmin    = "admin"
	RoleCompany  = "company"
	RolePromoter = "promoter"
	RoleUser     = "user"
)

const (
	ContractsRead     = "contracts:read"
	ContractsReadAll  = "contracts:read_all"
	ContractsCreate   = "contracts:create"
	ContractsUpdate   = "contracts:update"
	ContractsDelete   = "contracts:delete"
	ContractsApprove  = "contracts:approve"
	ContractsExport   = "contracts:export"
	TemplatesRead     = "templates:read"
	TemplatesCreate   = "templates:create"
	TemplatesUpdate   = "templates:update"
	TemplatesSubmit   = "templates:submit"
	TemplatesApprove  = "templates:approve"
	NotificationsRead = "notifications:read"
	NotificationsAdm  = "notifications:manage"
	UsersManage       = "users:manage"
	RolesManage       = "roles:manage"
	AuditRead         = "audit:read"
	FigmaExport       = "figma:export"
)

// AllRoles is ordered from most to least privileged.
var AllRoles = []string{RoleAdmin, RoleCompany, RolePromoter, RoleUser}

var allPermissions = []string{
	ContractsRead, ContractsReadAll, ContractsCreate, ContractsUpdate, ContractsDelete,
	ContractsApprove, ContractsExport, TemplatesRead, TemplatesCreate, TemplatesUpdate,
	TemplatesSubmit, TemplatesApprove, NotificationsRead, NotificationsAdm, UsersManage,
	RolesManage, AuditRead, FigmaExport,
}

var rolePermissions = map[string][]string{
	RoleAdmin: allPermissions,
	RoleCompany: {
		ContractsRead, ContractsCreate, ContractsUpdate, ContractsDelete, ContractsExport,
		TemplatesRead, TemplatesCreate, TemplatesUpdate, TemplatesSubmit,
		NotificationsRead, AuditRead, FigmaExport,
	},
	RolePromoter: {
		ContractsRead, ContractsCreate, ContractsUpdate, ContractsExport,
		TemplatesRead, NotificationsRead, FigmaExport,
	},
	RoleUser: {
		ContractsRead, ContractsExport, TemplatesRead, NotificationsRead,
	},
}

var roleDescriptions = map[string]string{
	RoleAdmin:    "Full access, user/role/template administration",
	RoleCompany:  "Creates contracts and submits templates for approval",
	RolePromoter: "Creates contracts from approved templates",
	RoleUser:     "Views and exports own contracts",
}

func Valid(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// SelfAssignable reports whether a role may be chosen at registration.
func SelfAssignable(role string) bool {
	return Valid(role) && role != RoleAdmin
}

// Permissions returns a sorted copy of the permissions granted to role.
// Unknown roles get an empty, non-nil list.
func Permissions(role string) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	sort.Strings(out)
	return out
}

func AllPermissions() []string {
	return Permissions(RoleAdmin)
}

func Can(role, permission string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

func Describe(role string) string { return roleDescriptions[role] }
