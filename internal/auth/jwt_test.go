package auth

import (
	"testing"
	"time"
)

func TestSignVerify(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	tok, jti, exp, err := iss.Sign("u1", "a@b.c", "company")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if jti == "" || exp.Before(time.Now()) {
		t.Fatalf("unexpected jti/expiry %q %v", jti, exp)
	}
	c, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Subject != "u1" || c.Role != "company" || c.JWTID != jti || c.Email != "a@b.c" {
		t.Fatalf("unexpected claims %#v", c)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	tok, _, _, err := NewIssuer("one", time.Hour).Sign("u1", "", "user")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewIssuer("two", time.Hour).Verify(tok); err == nil {
		t.Fatalf("expected verification failure")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss := NewIssuer("secret", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, _, err := iss.Sign("u1", "", "user")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	iss.now = time.Now
	if _, err := iss.Verify(tok); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	cases := []struct {
		pw      string
		wantErr bool
	}{
		{"short", true},
		{"longenough", false},
		{"كلمةسرطويلة", false},
	}
	for _, tc := range cases {
		if err := ValidatePassword(tc.pw); (err != nil) != tc.wantErr {
			t.Fatalf("ValidatePassword(%q) err=%v", tc.pw, err)
		}
	}
	hash, err := HashPassword("longenough")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if CheckPassword(hash, "longenough") != nil || CheckPassword(hash, "wrong") == nil {
		t.Fatalf("bcrypt comparison mismatch")
	}
}
