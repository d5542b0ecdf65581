package handlers

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/models"
	"contractdesk/internal/rbac"

	"gorm.io/gorm"
)

type registerReq struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// validEmail accepts a bare RFC 5322 address, rejecting display-name forms.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func userView(u models.User) map[string]any {
	return map[string]any{
		"id": u.ID, "email": u.Email, "name": u.Name, "role": u.Role,
		"is_active": u.IsActive, "created_at": u.CreatedAt,
	}
}

func Register(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = normalizeEmail(req.Email)
		if !validEmail(req.Email) {
			respondError(w, http.StatusBadRequest, "valid email required")
			return
		}
		if err := auth.ValidatePassword(req.Password); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Role == "" {
			req.Role = rbac.RoleUser
		}
		if !rbac.SelfAssignable(req.Role) {
			respondError(w, http.StatusBadRequest, "role not allowed")
			return
		}
		if err := d.Captcha.Verify(r.Context(), req.CaptchaToken, r.RemoteAddr); err != nil {
			d.Log.Infow("captcha rejected", "email", req.Email, "error", err)
			respondError(w, http.StatusBadRequest, "captcha verification failed")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		var exists int64
		if err := d.DB.WithContext(r.Context()).Model(&models.User{}).Where("email = ?", req.Email).Count(&exists).Error; err != nil {
			d.Log.Errorw("user lookup failed", "error", err)
			respondError(w, http.StatusInternalServerError, "could not create user")
			return
		}
		if exists > 0 {
			respondError(w, http.StatusConflict, "email already registered")
			return
		}
		now := time.Now()
		u := models.User{Email: req.Email, Name: strings.TrimSpace(req.Name), PasswordHash: hash, Role: req.Role, IsActive: true, CreatedAt: now, UpdatedAt: now}
		if err := d.DB.WithContext(r.Context()).Create(&u).Error; err != nil {
			respondError(w, http.StatusConflict, "could not create user")
			return
		}
		ctx := auth.WithClaims(r.Context(), auth.Claims{Subject: u.ID, Email: u.Email, Role: u.Role})
		audit(ctx, d, "auth.register", nil, map[string]any{"role": u.Role})
		respondStatus(w, http.StatusCreated, userView(u))
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var u models.User
		if err := d.DB.WithContext(r.Context()).First(&u, "email = ?", normalizeEmail(req.Email)).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if !u.IsActive {
			respondError(w, http.StatusForbidden, "account disabled")
			return
		}
		tok, jti, exp, err := d.Issuer.Sign(u.ID, u.Email, u.Role)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "token error")
			return
		}
		sess := models.Session{JTI: jti, UserID: u.ID, ExpiresAt: exp, CreatedAt: time.Now()}
		if err := d.DB.WithContext(r.Context()).Create(&sess).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "session error")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     d.Config.SessionCookie,
			Value:    tok,
			Path:     "/",
			Expires:  exp,
			HttpOnly: true,
			Secure:   d.Config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		ctx := auth.WithClaims(r.Context(), auth.Claims{Subject: u.ID, Email: u.Email, Role: u.Role, JWTID: jti})
		audit(ctx, d, "auth.login", nil, nil)
		respondJSON(w, map[string]any{"token": tok, "expires_at": exp, "user": userView(u)})
	}
}

func Logout(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		now := time.Now()
		d.DB.WithContext(r.Context()).Model(&models.Session{}).
			Where("jti = ? AND revoked_at IS NULL", claims.JWTID).
			Update("revoked_at", &now)
		if d.Cache != nil {
			if err := d.Cache.InvalidateSession(r.Context(), claims.JWTID); err != nil {
				d.Log.Warnw("cache invalidate failed", "jti", claims.JWTID, "error", err)
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     d.Config.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   d.Config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		audit(r.Context(), d, "auth.logout", nil, nil)
		respondJSON(w, map[string]any{"ok": true})
	}
}

func Me(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := d.DB.WithContext(r.Context()).First(&u, "id = ?", auth.Subject(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		out := userView(u)
		out["permissions"] = rbac.Permissions(u.Role)
		respondJSON(w, out)
	}
}

func ChangePassword(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OldPassword string `json:"old_password"`
			NewPassword string `json:"new_password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := auth.ValidatePassword(req.NewPassword); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		claims := auth.FromContext(r.Context())
		var u models.User
		if err := d.DB.WithContext(r.Context()).First(&u, "id = ?", claims.Subject).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.OldPassword); err != nil {
			respondError(w, http.StatusUnauthorized, "old password incorrect")
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		err = d.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&u).Updates(map[string]any{"password_hash": hash, "updated_at": time.Now()}).Error; err != nil {
				return err
			}
			now := time.Now()
			return tx.Model(&models.Session{}).
				Where("user_id = ? AND jti <> ? AND revoked_at IS NULL", u.ID, claims.JWTID).
				Update("revoked_at", &now).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "update failed")
			return
		}
		invalidateUser(r, d, u.ID)
		audit(r.Context(), d, "auth.password_changed", nil, nil)
		respondJSON(w, map[string]any{"updated": true})
	}
}

// invalidateUser drops cached principals so role, status and session
// changes apply on the next request.
func invalidateUser(r *http.Request, d *Deps, userID string) {
	if d.Cache == nil {
		return
	}
	if err := d.Cache.InvalidateUser(r.Context(), userID); err != nil {
		d.Log.Warnw("cache invalidate failed", "user_id", userID, "error", err)
	}
}
