package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/events"
	"contractdesk/internal/layout"
	"contractdesk/internal/models"
	"contractdesk/internal/notify"
	"contractdesk/internal/rbac"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type templateReq struct {
	Name               *string         `json:"name"`
	Category           *string         `json:"category"`
	ResponsibilitiesEN *string         `json:"responsibilities_en"`
	ResponsibilitiesAR *string         `json:"responsibilities_ar"`
	Layout             json.RawMessage `json:"layout"`
}

func (req templateReq) apply(t *models.Template) error {
	setString(&t.Name, req.Name)
	setString(&t.Category, req.Category)
	setString(&t.ResponsibilitiesEN, req.ResponsibilitiesEN)
	setString(&t.ResponsibilitiesAR, req.ResponsibilitiesAR)
	if req.Layout != nil {
		j, err := rawJSON(req.Layout)
		if err != nil {
			return err
		}
		t.Layout = j
	}
	return nil
}

// validateTemplateLayout checks the pages of a layout strictly when it has
// any. Other object shapes are stored as-is and left to the normalizer.
func validateTemplateLayout(j models.JSONB) error {
	if j.IsEmpty() {
		return nil
	}
	var v any
	if err := json.Unmarshal(j, &v); err != nil {
		return err
	}
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["contract_template"].(map[string]any); ok {
			m = inner
		}
		pages, ok := m["pages"]
		if !ok {
			return nil
		}
		v = pages
	}
	_, err := layout.ParsePages(v)
	return err
}

func canReviewTemplates(c auth.Claims) bool { return c.Can(rbac.TemplatesApprove) }

func templateVisible(c auth.Claims, t models.Template) bool {
	return t.OwnerID == c.Subject || t.Status == models.StatusApproved || canReviewTemplates(c)
}

func loadTemplate(w http.ResponseWriter, r *http.Request, d *Deps) (models.Template, bool) {
	var t models.Template
	if err := d.DB.WithContext(r.Context()).First(&t, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
		respondError(w, http.StatusNotFound, "template not found")
		return t, false
	}
	if !templateVisible(auth.FromContext(r.Context()), t) {
		respondError(w, http.StatusNotFound, "template not found")
		return t, false
	}
	return t, true
}

func ListTemplates(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		q := r.URL.Query()
		p := pageFromRequest(r)
		status := q.Get("status")
		if status != "" && !validStatus(status) {
			respondError(w, http.StatusBadRequest, "unknown status")
			return
		}
		filter := func(tx *gorm.DB) *gorm.DB {
			if !canReviewTemplates(claims) {
				tx = tx.Where("owner_id = ? OR status = ?", claims.Subject, models.StatusApproved)
			}
			if status != "" {
				tx = tx.Where("status = ?", status)
			}
			if cat := q.Get("category"); cat != "" {
				tx = tx.Where("category = ?", cat)
			}
			if term := strings.TrimSpace(q.Get("q")); term != "" {
				tx = tx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
			}
			return tx
		}
		db := d.DB.WithContext(r.Context())
		var total int64
		if err := db.Model(&models.Template{}).Scopes(filter).Count(&total).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list templates")
			return
		}
		var ts []models.Template
		if err := db.Scopes(filter, p.Scope).Order("updated_at desc").Find(&ts).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list templates")
			return
		}
		respondJSON(w, p.Response(ts, total))
	}
}

func GetTemplate(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := loadTemplate(w, r, d)
		if !ok {
			return
		}
		respondJSON(w, t)
	}
}

func CreateTemplate(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req templateReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		t := models.Template{OwnerID: auth.Subject(r.Context()), Status: models.StatusDraft, Version: 1}
		if err := req.apply(&t); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if t.Name == "" {
			respondError(w, http.StatusBadRequest, "name required")
			return
		}
		if err := validateTemplateLayout(t.Layout); err != nil {
			respondError(w, http.StatusBadRequest, "layout: "+err.Error())
			return
		}
		now := time.Now()
		t.CreatedAt, t.UpdatedAt = now, now
		if err := d.DB.WithContext(r.Context()).Create(&t).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not create template")
			return
		}
		audit(r.Context(), d, "template.created", nil, map[string]any{"template_id": t.ID})
		respondStatus(w, http.StatusCreated, t)
	}
}

// UpdateTemplate edits drafts and rejected templates in place (rejected
// returns to draft). Editing an approved template creates the next version
// as a new draft; pending templates are frozen.
func UpdateTemplate(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := loadTemplate(w, r, d)
		if !ok {
			return
		}
		claims := auth.FromContext(r.Context())
		if t.OwnerID != claims.Subject && !claims.IsAdmin() {
			respondError(w, http.StatusForbidden, "only the owner or an admin may change this template")
			return
		}
		if t.Status == models.StatusPending {
			respondError(w, http.StatusConflict, "template is pending review")
			return
		}
		var req templateReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		now := time.Now()
		if t.Status == models.StatusApproved {
			next := models.Template{
				OwnerID:            t.OwnerID,
				Name:               t.Name,
				Category:           t.Category,
				ResponsibilitiesEN: t.ResponsibilitiesEN,
				ResponsibilitiesAR: t.ResponsibilitiesAR,
				Layout:             t.Layout,
				Status:             models.StatusDraft,
				Version:            t.Version + 1,
				ParentID:           &t.ID,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := req.apply(&next); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			if next.Name == "" {
				respondError(w, http.StatusBadRequest, "name required")
				return
			}
			if err := validateTemplateLayout(next.Layout); err != nil {
				respondError(w, http.StatusBadRequest, "layout: "+err.Error())
				return
			}
			if err := d.DB.WithContext(r.Context()).Create(&next).Error; err != nil {
				respondError(w, http.StatusInternalServerError, "could not create version")
				return
			}
			audit(r.Context(), d, "template.versioned", nil, map[string]any{"template_id": next.ID, "parent_id": t.ID, "version": next.Version})
			respondStatus(w, http.StatusCreated, next)
			return
		}
		previous := t.Status
		if err := req.apply(&t); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if t.Name == "" {
			respondError(w, http.StatusBadRequest, "name required")
			return
		}
		if err := validateTemplateLayout(t.Layout); err != nil {
			respondError(w, http.StatusBadRequest, "layout: "+err.Error())
			return
		}
		t.Status, t.ReviewNote, t.UpdatedAt = models.StatusDraft, "", now
		res := d.DB.WithContext(r.Context()).Model(&models.Template{}).
			Where("id = ? AND status = ?", t.ID, previous).
			Select("*").Omit("id", "owner_id", "version", "parent_id", "created_at").
			Updates(&t)
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "update failed")
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusConflict, "template changed concurrently")
			return
		}
		audit(r.Context(), d, "template.updated", nil, map[string]any{"template_id": t.ID, "previous_status": previous})
		respondJSON(w, t)
	}
}

func DeleteTemplate(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := loadTemplate(w, r, d)
		if !ok {
			return
		}
		claims := auth.FromContext(r.Context())
		if !claims.IsAdmin() {
			if t.OwnerID != claims.Subject {
				respondError(w, http.StatusForbidden, "only the owner or an admin may delete this template")
				return
			}
			if t.Status != models.StatusDraft && t.Status != models.StatusRejected {
				respondError(w, http.StatusConflict, "template is "+t.Status+" and cannot be deleted")
				return
			}
		}
		if err := d.DB.WithContext(r.Context()).Delete(&models.Template{}, "id = ?", t.ID).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		audit(r.Context(), d, "template.deleted", nil, map[string]any{"template_id": t.ID})
		respondJSON(w, map[string]any{"deleted": true})
	}
}

// moveTemplate applies a status change guarded by the expected current
// status.
func moveTemplate(r *http.Request, d *Deps, t *models.Template, from, to string, extra map[string]any) (bool, error) {
	now := time.Now()
	updates := map[string]any{"status": to, "updated_at": now}
	for k, v := range extra {
		updates[k] = v
	}
	res := d.DB.WithContext(r.Context()).Model(&models.Template{}).
		Where("id = ? AND status = ?", t.ID, from).
		Updates(updates)
	if res.Error != nil || res.RowsAffected == 0 {
		return false, res.Error
	}
	t.Status, t.UpdatedAt = to, now
	return true, nil
}

func SubmitTemplate(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := loadTemplate(w, r, d)
		if !ok {
			return
		}
		claims := auth.FromContext(r.Context())
		if t.OwnerID != claims.Subject && !claims.IsAdmin() {
			respondError(w, http.StatusForbidden, "only the owner may submit this template")
			return
		}
		if t.Status != models.StatusDraft {
			respondError(w, http.StatusConflict, "only draft templates can be submitted")
			return
		}
		moved, err := moveTemplate(r, d, &t, models.StatusDraft, models.StatusPending, nil)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "submit failed")
			return
		}
		if !moved {
			respondError(w, http.StatusConflict, "template changed concurrently")
			return
		}
		audit(r.Context(), d, "template.submitted", nil, map[string]any{"template_id": t.ID})
		d.Notify.Emit(r.Context(), notify.Event{
			Type:    events.TemplateSubmitted,
			ActorID: claims.Subject,
			Key:     t.ID,
			Vars:    map[string]string{"name": t.Name, "version": strconv.Itoa(t.Version)},
			Data:    map[string]any{"template_id": t.ID},
		})
		respondJSON(w, t)
	}
}

// TemplateReviewQueue lists templates awaiting review, oldest first.
func TemplateReviewQueue(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFromRequest(r)
		db := d.DB.WithContext(r.Context())
		var total int64
		if err := db.Model(&models.Template{}).Where("status = ?", models.StatusPending).Count(&total).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list templates")
			return
		}
		var ts []models.Template
		if err := db.Where("status = ?", models.StatusPending).Scopes(p.Scope).Order("updated_at asc").Find(&ts).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list templates")
			return
		}
		respondJSON(w, p.Response(ts, total))
	}
}

func ApproveTemplate(d *Deps) http.HandlerFunc { return reviewTemplate(d, true) }

func RejectTemplate(d *Deps) http.HandlerFunc { return reviewTemplate(d, false) }

func reviewTemplate(d *Deps, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Note string `json:"note"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		req.Note = strings.TrimSpace(req.Note)
		if !approve && req.Note == "" {
			respondError(w, http.StatusBadRequest, "note required when rejecting")
			return
		}
		t, ok := loadTemplate(w, r, d)
		if !ok {
			return
		}
		if t.Status != models.StatusPending {
			respondError(w, http.StatusConflict, "template is not pending review")
			return
		}
		reviewer := auth.Subject(r.Context())
		now := time.Now()
		to, eventType, action := models.StatusApproved, events.TemplateApproved, "template.approved"
		if !approve {
			to, eventType, action = models.StatusRejected, events.TemplateRejected, "template.rejected"
		}
		moved, err := moveTemplate(r, d, &t, models.StatusPending, to, map[string]any{
			"review_note": req.Note, "reviewed_by": reviewer, "reviewed_at": now,
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "review failed")
			return
		}
		if !moved {
			respondError(w, http.StatusConflict, "template changed concurrently")
			return
		}
		t.ReviewNote, t.ReviewedBy, t.ReviewedAt = req.Note, &reviewer, &now
		audit(r.Context(), d, action, nil, map[string]any{"template_id": t.ID, "note": req.Note})
		d.Notify.Emit(r.Context(), notify.Event{
			Type:        eventType,
			ActorID:     reviewer,
			RecipientID: t.OwnerID,
			Link:        "/v1/templates/" + t.ID,
			Key:         t.ID,
			Vars:        map[string]string{"name": t.Name, "version": strconv.Itoa(t.Version), "reason": req.Note},
			Data:        map[string]any{"template_id": t.ID},
		})
		respondJSON(w, t)
	}
}
