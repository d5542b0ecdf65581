package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/events"
	"contractdesk/internal/models"
	"contractdesk/internal/notify"
	"contractdesk/internal/rbac"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// ListUsers supports ?q= over email and name, ?role= and pagination.
func ListUsers(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := pageFromRequest(r)
		filter := func(tx *gorm.DB) *gorm.DB {
			if term := strings.TrimSpace(q.Get("q")); term != "" {
				like := "%" + strings.ToLower(term) + "%"
				tx = tx.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", like, like)
			}
			if role := q.Get("role"); role != "" {
				tx = tx.Where("role = ?", role)
			}
			return tx
		}
		db := d.DB.WithContext(r.Context())
		var total int64
		if err := db.Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list users")
			return
		}
		var users []models.User
		if err := db.Scopes(filter, p.Scope).Order("created_at desc").Find(&users).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list users")
			return
		}
		out := make([]map[string]any, 0, len(users))
		for _, u := range users {
			out = append(out, userView(u))
		}
		respondJSON(w, p.Response(out, total))
	}
}

func CreateUser(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
			Role     string `json:"role"`
		}
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
		if !rbac.Valid(req.Role) {
			respondError(w, http.StatusBadRequest, "unknown role")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		now := time.Now()
		u := models.User{Email: req.Email, Name: strings.TrimSpace(req.Name), PasswordHash: hash, Role: req.Role, IsActive: true, CreatedAt: now, UpdatedAt: now}
		if err := d.DB.WithContext(r.Context()).Create(&u).Error; err != nil {
			respondError(w, http.StatusConflict, "email already registered")
			return
		}
		audit(r.Context(), d, "admin.user_created", nil, map[string]any{"user_id": u.ID, "role": u.Role})
		respondStatus(w, http.StatusCreated, userView(u))
	}
}

func UpdateUser(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Name     *string `json:"name"`
			IsActive *bool   `json:"is_active"`
			Password *string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var u models.User
		if err := d.DB.WithContext(r.Context()).First(&u, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		changed := []string{}
		if req.Name != nil {
			u.Name = strings.TrimSpace(*req.Name)
			changed = append(changed, "name")
		}
		if req.IsActive != nil {
			if !*req.IsActive && u.ID == auth.Subject(r.Context()) {
				respondError(w, http.StatusBadRequest, "cannot deactivate yourself")
				return
			}
			u.IsActive = *req.IsActive
			changed = append(changed, "is_active")
		}
		if req.Password != nil {
			if err := auth.ValidatePassword(*req.Password); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "hash error")
				return
			}
			u.PasswordHash = hash
			changed = append(changed, "password")
		}
		u.UpdatedAt = time.Now()
		if err := d.DB.WithContext(r.Context()).Save(&u).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "update failed")
			return
		}
		invalidateUser(r, d, u.ID)
		audit(r.Context(), d, "admin.user_updated", nil, map[string]any{"user_id": u.ID, "fields": changed})
		respondJSON(w, userView(u))
	}
}

func DeleteUser(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == auth.Subject(r.Context()) {
			respondError(w, http.StatusBadRequest, "cannot delete yourself")
			return
		}
		err := d.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
				return err
			}
			res := tx.Delete(&models.User{}, "id = ?", id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		invalidateUser(r, d, id)
		audit(r.Context(), d, "admin.user_deleted", nil, map[string]any{"user_id": id})
		respondJSON(w, map[string]any{"deleted": true})
	}
}

func AssignRole(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Role string `json:"role"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !rbac.Valid(req.Role) {
			respondError(w, http.StatusBadRequest, "unknown role")
			return
		}
		if id == auth.Subject(r.Context()) && req.Role != rbac.RoleAdmin {
			respondError(w, http.StatusBadRequest, "cannot demote yourself")
			return
		}
		var u models.User
		if err := d.DB.WithContext(r.Context()).First(&u, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		previous := u.Role
		if err := d.DB.WithContext(r.Context()).Model(&u).Updates(map[string]any{"role": req.Role, "updated_at": time.Now()}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "update failed")
			return
		}
		u.Role = req.Role
		invalidateUser(r, d, u.ID)
		audit(r.Context(), d, "admin.role_assigned", nil, map[string]any{"user_id": u.ID, "from": previous, "to": req.Role})
		d.Notify.Emit(r.Context(), notify.Event{
			Type:        events.UserRoleChanged,
			ActorID:     auth.Subject(r.Context()),
			RecipientID: u.ID,
			Key:         u.ID,
			Vars:        map[string]string{"role": u.Role},
			Data:        map[string]any{"user_id": u.ID, "previous_role": previous},
		})
		respondJSON(w, userView(u))
	}
}

type roleView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func ListRoles(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stored []models.Role
		if err := d.DB.WithContext(r.Context()).Find(&stored).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list roles")
			return
		}
		desc := map[string]string{}
		for _, role := range stored {
			desc[role.Name] = role.Description
		}
		out := make([]roleView, 0, len(rbac.AllRoles))
		for _, name := range rbac.AllRoles {
			description := desc[name]
			if description == "" {
				description = rbac.Describe(name)
			}
			out = append(out, roleView{Name: name, Description: description, Permissions: rbac.Permissions(name)})
		}
		respondJSON(w, out)
	}
}
