package handlers

import (
	"context"
	"net/http"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/models"
	"contractdesk/internal/rbac"

	"gorm.io/gorm"
)

// audit records a mutation. A failed insert is logged, never surfaced.
func audit(ctx context.Context, d *Deps, action string, contractID *string, meta map[string]any) {
	var uid *string
	if sub := auth.Subject(ctx); sub != "" {
		uid = &sub
	}
	row := models.AuditLog{UserID: uid, ContractID: contractID, Action: action, Metadata: models.MustJSONB(meta), CreatedAt: time.Now()}
	if err := d.DB.WithContext(ctx).Create(&row).Error; err != nil {
		d.Log.Errorw("audit insert failed", "action", action, "error", err)
	}
}

// ListLogs returns audit logs, newest first. Callers holding audit:read may
// pass ?all=1 to see every user's entries; contract_id and action filter.
func ListLogs(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		q := r.URL.Query()
		p := pageFromRequest(r)
		filter := func(tx *gorm.DB) *gorm.DB {
			if !(q.Get("all") == "1" && claims.Can(rbac.AuditRead)) {
				tx = tx.Where("user_id = ?", claims.Subject)
			}
			if cid := q.Get("contract_id"); cid != "" {
				tx = tx.Where("contract_id = ?", cid)
			}
			if action := q.Get("action"); action != "" {
				tx = tx.Where("action = ?", action)
			}
			return tx
		}
		db := d.DB.WithContext(r.Context())
		var total int64
		if err := db.Model(&models.AuditLog{}).Scopes(filter).Count(&total).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list logs")
			return
		}
		var logs []models.AuditLog
		if err := db.Scopes(filter, p.Scope).Order("created_at desc, id desc").Find(&logs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list logs")
			return
		}
		respondJSON(w, p.Response(logs, total))
	}
}
