package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/models"
	"contractdesk/internal/notify"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm/clause"
)

func ListNotifications(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unread := r.URL.Query().Get("unread") == "1" || r.URL.Query().Get("unread") == "true"
		vs, err := d.Notify.List(r.Context(), auth.Subject(r.Context()), unread)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not list notifications")
			return
		}
		respondJSON(w, vs)
	}
}

func UnreadCount(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Notify.UnreadCount(r.Context(), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not count notifications")
			return
		}
		respondJSON(w, map[string]int{"unread": n})
	}
}

func MarkNotificationRead(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Notify.MarkRead(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"))
		if errors.Is(err, notify.ErrNotFound) {
			respondError(w, http.StatusNotFound, "notification not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not mark read")
			return
		}
		respondJSON(w, map[string]any{"read": true})
	}
}

func MarkAllNotificationsRead(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Notify.MarkAllRead(r.Context(), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not mark read")
			return
		}
		respondJSON(w, map[string]int{"updated": n})
	}
}

type createNotificationReq struct {
	UserID      *string           `json:"user_id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Link        string            `json:"link"`
	Important   bool              `json:"important"`
	ExpiresAt   *time.Time        `json:"expires_at"`
	TemplateKey string            `json:"template_key"`
	Variables   map[string]string `json:"variables"`
}

// CreateNotification sends to one user, or broadcasts when user_id is
// omitted. With template_key the title and message come from the stored
// template and every placeholder must be supplied.
func CreateNotification(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createNotificationReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.UserID != nil {
			var n int64
			if err := d.DB.WithContext(r.Context()).Model(&models.User{}).Where("id = ?", *req.UserID).Count(&n).Error; err != nil {
				respondError(w, http.StatusInternalServerError, "could not look up user")
				return
			}
			if n == 0 {
				respondError(w, http.StatusNotFound, "user not found")
				return
			}
		}
		if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
			respondError(w, http.StatusBadRequest, "expires_at must be in the future")
			return
		}
		var (
			n   models.Notification
			err error
		)
		if req.TemplateKey != "" {
			n, err = d.Notify.FromTemplate(r.Context(), req.TemplateKey, req.UserID, req.Variables, req.Link, req.ExpiresAt)
			switch {
			case errors.Is(err, notify.ErrNotFound):
				respondError(w, http.StatusNotFound, "notification template not found")
				return
			case errors.Is(err, notify.ErrMissingVariables):
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
		} else {
			if strings.TrimSpace(req.Message) == "" {
				respondError(w, http.StatusBadRequest, "message required")
				return
			}
			n = models.Notification{
				UserID: req.UserID, Title: strings.TrimSpace(req.Title), Message: req.Message,
				Link: req.Link, IsImportant: req.Important, ExpiresAt: req.ExpiresAt,
			}
			err = d.Notify.Create(r.Context(), &n)
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not create notification")
			return
		}
		audit(r.Context(), d, "notification.created", nil, map[string]any{"notification_id": n.ID, "broadcast": n.UserID == nil})
		respondStatus(w, http.StatusCreated, n)
	}
}

func DeleteNotification(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := d.Notify.Delete(r.Context(), id)
		if errors.Is(err, notify.ErrNotFound) {
			respondError(w, http.StatusNotFound, "notification not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		audit(r.Context(), d, "notification.deleted", nil, map[string]any{"notification_id": id})
		respondJSON(w, map[string]any{"deleted": true})
	}
}

func NotificationReceipts(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := d.Notify.Receipts(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not list receipts")
			return
		}
		respondJSON(w, rs)
	}
}

func ListNotificationTemplates(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ts []models.NotificationTemplate
		if err := d.DB.WithContext(r.Context()).Order("key").Find(&ts).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list templates")
			return
		}
		out := make([]map[string]any, 0, len(ts))
		for _, t := range ts {
			out = append(out, map[string]any{
				"key": t.Key, "title": t.Title, "body": t.Body, "important": t.Important,
				"variables": notify.Placeholders(t.Title + " " + t.Body), "updated_at": t.UpdatedAt,
			})
		}
		respondJSON(w, out)
	}
}

// PutNotificationTemplate creates or replaces the template at {key}.
func PutNotificationTemplate(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title     string `json:"title"`
			Body      string `json:"body"`
			Important bool   `json:"important"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" || len(key) > 64 {
			respondError(w, http.StatusBadRequest, "key must be 1-64 characters")
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			respondError(w, http.StatusBadRequest, "body required")
			return
		}
		now := time.Now()
		t := models.NotificationTemplate{Key: key, Title: req.Title, Body: req.Body, Important: req.Important, CreatedAt: now, UpdatedAt: now}
		err := d.DB.WithContext(r.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "body", "important", "updated_at"}),
		}).Create(&t).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not save template")
			return
		}
		audit(r.Context(), d, "notification_template.saved", nil, map[string]any{"key": key})
		respondJSON(w, map[string]any{"key": t.Key, "title": t.Title, "body": t.Body, "important": t.Important, "variables": notify.Placeholders(t.Title + " " + t.Body)})
	}
}
