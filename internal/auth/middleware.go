package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"contractdesk/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PrincipalCache keeps resolved sessions so most requests skip the database.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, jti string) (Claims, bool, error)
	SetPrincipal(ctx context.Context, c Claims, sessionExpiry time.Time) error
	InvalidateSession(ctx context.Context, jti string) error
	InvalidateUser(ctx context.Context, userID string) error
}

// Authenticator resolves the caller from the session cookie or a bearer token.
type Authenticator struct {
	DB         *gorm.DB
	Issuer     *Issuer
	CookieName string
	Cache      PrincipalCache
	Log        *zap.SugaredLogger
}

// TokenFromRequest prefers the session cookie and falls back to the
// Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := TokenFromRequest(r, a.CookieName)
		if raw == "" {
			unauthorized(w, "missing session")
			return
		}
		claims, err := a.Issuer.Verify(raw)
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}
		resolved, err := a.resolve(r.Context(), claims)
		if err != nil {
			unauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), resolved)))
	})
}

type sessionError string

func (e sessionError) Error() string { return string(e) }

const (
	errSessionNotFound = sessionError("session not found")
	errSessionExpired  = sessionError("session expired/revoked")
	errUserInactive    = sessionError("user inactive")
)

// resolve maps a verified token to the current role of an active user with
// a live session. The role comes from the user row, not the token.
func (a *Authenticator) resolve(ctx context.Context, claims Claims) (Claims, error) {
	if a.Cache != nil {
		if cached, ok, err := a.Cache.GetPrincipal(ctx, claims.JWTID); err == nil && ok && cached.Subject == claims.Subject {
			return cached, nil
		} else if err != nil && a.Log != nil {
			a.Log.Warnw("principal cache read failed", "error", err)
		}
	}

	var sess models.Session
	if err := a.DB.WithContext(ctx).First(&sess, "jti = ?", claims.JWTID).Error; err != nil {
		return Claims{}, errSessionNotFound
	}
	if sess.UserID != claims.Subject || sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
		return Claims{}, errSessionExpired
	}
	var u models.User
	if err := a.DB.WithContext(ctx).First(&u, "id = ?", sess.UserID).Error; err != nil || !u.IsActive {
		return Claims{}, errUserInactive
	}
	resolved := Claims{Subject: u.ID, Email: u.Email, Role: u.Role, JWTID: sess.JTI}
	if a.Cache != nil {
		if err := a.Cache.SetPrincipal(ctx, resolved, sess.ExpiresAt); err != nil && a.Log != nil {
			a.Log.Warnw("principal cache write failed", "error", err)
		}
	}
	return resolved, nil
}

// RequirePermission answers 403 unless the caller's role grants permission.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).Can(permission) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "forbidden")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
