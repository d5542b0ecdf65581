package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/models"
	"contractdesk/internal/rbac"
	"contractdesk/internal/testutil"

	"gorm.io/gorm"
)

func login(t *testing.T, db *gorm.DB, iss *auth.Issuer, role string) (string, models.User) {
	t.Helper()
	u := models.User{Email: role + "@example.com", PasswordHash: "x", Role: role, IsActive: true}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	tok, jti, exp, err := iss.Sign(u.ID, u.Email, u.Role)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := db.Create(&models.Session{JTI: jti, UserID: u.ID, ExpiresAt: exp}).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return tok, u
}

func protected(a *auth.Authenticator, mw ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(auth.FromContext(r.Context()).Role))
	})
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return a.Middleware(h)
}

func TestMiddlewareBearerAndCookie(t *testing.T) {
	db := testutil.NewDB(t)
	iss := auth.NewIssuer("secret", time.Hour)
	a := &auth.Authenticator{DB: db, Issuer: iss, CookieName: "session"}
	tok, _ := login(t, db, iss, rbac.RoleCompany)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	protected(a).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != rbac.RoleCompany {
		t.Fatalf("bearer: got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: tok})
	rec = httptest.NewRecorder()
	protected(a).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	protected(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: got %d", rec.Code)
	}
}

func TestMiddlewareRejectsRevokedSession(t *testing.T) {
	db := testutil.NewDB(t)
	iss := auth.NewIssuer("secret", time.Hour)
	a := &auth.Authenticator{DB: db, Issuer: iss}
	tok, u := login(t, db, iss, rbac.RoleUser)
	now := time.Now()
	if err := db.Model(&models.Session{}).Where("user_id = ?", u.ID).Update("revoked_at", &now).Error; err != nil {
		t.Fatalf("revoke: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	protected(a).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRoleComesFromUserRow(t *testing.T) {
	db := testutil.NewDB(t)
	iss := auth.NewIssuer("secret", time.Hour)
	a := &auth.Authenticator{DB: db, Issuer: iss}
	tok, u := login(t, db, iss, rbac.RoleAdmin)
	if err := db.Model(&u).Update("role", rbac.RoleUser).Error; err != nil {
		t.Fatalf("demote: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	protected(a, auth.RequirePermission(rbac.UsersManage)).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("demoted admin should be forbidden, got %d", rec.Code)
	}
}
