package handlers

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
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

type contractReq struct {
	Title              *string         `json:"title"`
	TemplateID         *string         `json:"template_id"`
	FirstPartyNameEN   *string         `json:"first_party_name_en"`
	FirstPartyNameAR   *string         `json:"first_party_name_ar"`
	SecondPartyNameEN  *string         `json:"second_party_name_en"`
	SecondPartyNameAR  *string         `json:"second_party_name_ar"`
	StartDate          *string         `json:"start_date"`
	EndDate            *string         `json:"end_date"`
	ResponsibilitiesEN *string         `json:"responsibilities_en"`
	ResponsibilitiesAR *string         `json:"responsibilities_ar"`
	SignatureURL       *string         `json:"signature_url"`
	StampURL           *string         `json:"stamp_url"`
	LetterheadURL      *string         `json:"letterhead_url"`
	Layout             json.RawMessage `json:"layout"`
	ContractData       json.RawMessage `json:"contract_data"`
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func rawJSON(raw json.RawMessage) (models.JSONB, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("invalid JSON")
	}
	return models.JSONB(trimmed), nil
}

// apply copies the present request fields onto c.
func (req contractReq) apply(c *models.Contract) error {
	setString(&c.Title, req.Title)
	setString(&c.FirstPartyNameEN, req.FirstPartyNameEN)
	setString(&c.FirstPartyNameAR, req.FirstPartyNameAR)
	setString(&c.SecondPartyNameEN, req.SecondPartyNameEN)
	setString(&c.SecondPartyNameAR, req.SecondPartyNameAR)
	setString(&c.ResponsibilitiesEN, req.ResponsibilitiesEN)
	setString(&c.ResponsibilitiesAR, req.ResponsibilitiesAR)
	setString(&c.SignatureURL, req.SignatureURL)
	setString(&c.StampURL, req.StampURL)
	setString(&c.LetterheadURL, req.LetterheadURL)
	if req.StartDate != nil {
		t, err := parseDate(*req.StartDate)
		if err != nil {
			return err
		}
		c.StartDate = t
	}
	if req.EndDate != nil {
		t, err := parseDate(*req.EndDate)
		if err != nil {
			return err
		}
		c.EndDate = t
	}
	if req.Layout != nil {
		j, err := rawJSON(req.Layout)
		if err != nil {
			return fmt.Errorf("layout: %w", err)
		}
		c.Layout = j
	}
	if req.ContractData != nil {
		j, err := rawJSON(req.ContractData)
		if err != nil {
			return fmt.Errorf("contract_data: %w", err)
		}
		c.ContractData = j
	}
	return nil
}

func validateContract(c models.Contract) error {
	switch {
	case c.FirstPartyNameEN == "" || c.SecondPartyNameEN == "":
		return errors.New("first_party_name_en and second_party_name_en required")
	case c.StartDate.IsZero() || c.EndDate.IsZero():
		return errors.New("start_date and end_date required")
	case c.StartDate.After(c.EndDate):
		return errors.New("start_date must not be after end_date")
	}
	return nil
}

const refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newReferenceNumber returns CT-YYYYMMDD-XXXXXX.
func newReferenceNumber(now time.Time) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = refAlphabet[int(b[i])%len(refAlphabet)]
	}
	return "CT-" + now.UTC().Format("20060102") + "-" + string(b), nil
}

// insertContract assigns a unique reference number and stores c.
func insertContract(r *http.Request, d *Deps, c *models.Contract) error {
	for attempt := 0; attempt < 5; attempt++ {
		ref, err := newReferenceNumber(time.Now())
		if err != nil {
			return err
		}
		var n int64
		if err := d.DB.WithContext(r.Context()).Model(&models.Contract{}).Where("reference_number = ?", ref).Count(&n).Error; err != nil {
			return fmt.Errorf("reference lookup: %w", err)
		}
		if n > 0 {
			continue
		}
		c.ReferenceNumber = ref
		return d.DB.WithContext(r.Context()).Create(c).Error
	}
	return errors.New("could not allocate reference number")
}

func canView(claims auth.Claims, c models.Contract) bool {
	return c.OwnerID == claims.Subject || claims.Can(rbac.ContractsReadAll)
}

func canModify(claims auth.Claims, c models.Contract) bool {
	return c.OwnerID == claims.Subject || claims.IsAdmin()
}

// loadContract fetches {id} and enforces read access. It writes the error
// response itself and reports whether the caller may continue.
func loadContract(w http.ResponseWriter, r *http.Request, d *Deps) (models.Contract, bool) {
	var c models.Contract
	if err := d.DB.WithContext(r.Context()).First(&c, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
		respondError(w, http.StatusNotFound, "contract not found")
		return c, false
	}
	if !canView(auth.FromContext(r.Context()), c) {
		respondError(w, http.StatusNotFound, "contract not found")
		return c, false
	}
	return c, true
}

// loadContractForWrite additionally requires ownership or admin and an
// editable status.
func loadContractForWrite(w http.ResponseWriter, r *http.Request, d *Deps) (models.Contract, bool) {
	c, ok := loadContract(w, r, d)
	if !ok {
		return c, false
	}
	if !canModify(auth.FromContext(r.Context()), c) {
		respondError(w, http.StatusForbidden, "only the owner or an admin may change this contract")
		return c, false
	}
	if !c.Editable() {
		respondError(w, http.StatusConflict, "contract is "+c.Status+" and cannot be changed")
		return c, false
	}
	return c, true
}

func CreateContract(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contractReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		claims := auth.FromContext(r.Context())
		c := models.Contract{OwnerID: claims.Subject, Status: models.StatusDraft}
		if req.TemplateID != nil && *req.TemplateID != "" {
			var t models.Template
			if err := d.DB.WithContext(r.Context()).First(&t, "id = ?", *req.TemplateID).Error; err != nil {
				respondError(w, http.StatusNotFound, "template not found")
				return
			}
			if t.Status != models.StatusApproved {
				respondError(w, http.StatusConflict, "template is not approved")
				return
			}
			c.TemplateID = &t.ID
			c.Title = t.Name
			c.ResponsibilitiesEN = t.ResponsibilitiesEN
			c.ResponsibilitiesAR = t.ResponsibilitiesAR
			c.Layout = t.Layout
		}
		if err := req.apply(&c); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validateContract(c); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		now := time.Now()
		c.CreatedAt, c.UpdatedAt = now, now
		if err := insertContract(r, d, &c); err != nil {
			d.Log.Errorw("contract insert failed", "error", err)
			respondError(w, http.StatusInternalServerError, "could not create contract")
			return
		}
		audit(r.Context(), d, "contract.created", &c.ID, map[string]any{"reference_number": c.ReferenceNumber, "template_id": c.TemplateID})
		respondStatus(w, http.StatusCreated, c)
	}
}

// ListContracts filters by ?q= (party names, reference number) and
// ?status=, scoped to the caller unless they may read all contracts.
func ListContracts(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		q := r.URL.Query()
		p := pageFromRequest(r)
		status := q.Get("status")
		if status != "" && !validStatus(status) {
			respondError(w, http.StatusBadRequest, "unknown status")
			return
		}
		filter := contractFilter(claims, strings.TrimSpace(q.Get("q")), status, q.Get("owner_id"))
		db := d.DB.WithContext(r.Context())
		var total int64
		if err := db.Model(&models.Contract{}).Scopes(filter).Count(&total).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list contracts")
			return
		}
		var cs []models.Contract
		if err := db.Scopes(filter, p.Scope).Order("created_at desc").Find(&cs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not list contracts")
			return
		}
		respondJSON(w, p.Response(cs, total))
	}
}

func validStatus(s string) bool {
	switch s {
	case models.StatusDraft, models.StatusPending, models.StatusApproved, models.StatusRejected:
		return true
	}
	return false
}

func contractFilter(claims auth.Claims, term, status, owner string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if !claims.Can(rbac.ContractsReadAll) {
			tx = tx.Where("owner_id = ?", claims.Subject)
		} else if owner != "" {
			tx = tx.Where("owner_id = ?", owner)
		}
		if status != "" {
			tx = tx.Where("status = ?", status)
		}
		if term != "" {
			like := "%" + strings.ToLower(term) + "%"
			tx = tx.Where(
				"LOWER(first_party_name_en) LIKE ? OR LOWER(second_party_name_en) LIKE ? OR first_party_name_ar LIKE ? OR second_party_name_ar LIKE ? OR LOWER(reference_number) LIKE ? OR LOWER(title) LIKE ?",
				like, like, "%"+term+"%", "%"+term+"%", like, like,
			)
		}
		return tx
	}
}

func GetContract(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContract(w, r, d)
		if !ok {
			return
		}
		respondJSON(w, c)
	}
}

// UpdateContract edits a draft or rejected contract. Editing a rejected
// contract returns it to draft, and any generated PDF is discarded.
func UpdateContract(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContractForWrite(w, r, d)
		if !ok {
			return
		}
		var req contractReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.TemplateID != nil {
			respondError(w, http.StatusBadRequest, "template_id cannot be changed")
			return
		}
		if err := req.apply(&c); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validateContract(c); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		previous := c.Status
		c.Status = models.StatusDraft
		c.RejectionReason = ""
		c.PDFURL = nil
		c.UpdatedAt = time.Now()
		res := d.DB.WithContext(r.Context()).Model(&models.Contract{}).
			Where("id = ? AND status = ?", c.ID, previous).
			Select("*").Omit("id", "owner_id", "reference_number", "created_at", "template_id").
			Updates(&c)
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "update failed")
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusConflict, "contract changed concurrently")
			return
		}
		removeStoredPDF(d, c.ID)
		revokeApprovalLinks(r, d, c.ID)
		audit(r.Context(), d, "contract.updated", &c.ID, map[string]any{"previous_status": previous})
		respondJSON(w, c)
	}
}

func DeleteContract(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContractForWrite(w, r, d)
		if !ok {
			return
		}
		err := d.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("contract_id = ?", c.ID).Delete(&models.ApprovalToken{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Contract{}, "id = ?", c.ID).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		removeStoredPDF(d, c.ID)
		audit(r.Context(), d, "contract.deleted", &c.ID, map[string]any{"reference_number": c.ReferenceNumber})
		respondJSON(w, map[string]any{"deleted": true})
	}
}

// transition moves the contract from one of from to status atomically.
func transition(db *gorm.DB, c *models.Contract, status string, extra map[string]any, from ...string) (bool, error) {
	now := time.Now()
	updates := map[string]any{"status": status, "updated_at": now}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.Model(&models.Contract{}).
		Where("id = ? AND status IN ?", c.ID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	c.Status, c.UpdatedAt = status, now
	return true, nil
}

func SubmitContract(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContractForWrite(w, r, d)
		if !ok {
			return
		}
		moved, err := transition(d.DB.WithContext(r.Context()), &c, models.StatusPending, map[string]any{"rejection_reason": ""}, models.StatusDraft, models.StatusRejected)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "submit failed")
			return
		}
		if !moved {
			respondError(w, http.StatusConflict, "contract changed concurrently")
			return
		}
		c.RejectionReason = ""
		audit(r.Context(), d, "contract.submitted", &c.ID, nil)
		d.Notify.Emit(r.Context(), notify.Event{
			Type:    events.ContractSubmitted,
			ActorID: auth.Subject(r.Context()),
			Key:     c.ID,
			Vars:    map[string]string{"reference": c.ReferenceNumber},
			Data:    map[string]any{"contract_id": c.ID, "owner_id": c.OwnerID},
		})
		respondJSON(w, c)
	}
}

func ApproveContract(d *Deps) http.HandlerFunc { return reviewContract(d, true) }

func RejectContract(d *Deps) http.HandlerFunc { return reviewContract(d, false) }

func reviewContract(d *Deps, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		req.Reason = strings.TrimSpace(req.Reason)
		if !approve && req.Reason == "" {
			respondError(w, http.StatusBadRequest, "reason required when rejecting")
			return
		}
		c, ok := loadContract(w, r, d)
		if !ok {
			return
		}
		if c.Status != models.StatusPending {
			respondError(w, http.StatusConflict, "contract is not pending approval")
			return
		}
		reviewer := auth.Subject(r.Context())
		now := time.Now()
		status, eventType, action := models.StatusApproved, events.ContractApproved, "contract.approved"
		if !approve {
			status, eventType, action = models.StatusRejected, events.ContractRejected, "contract.rejected"
		}
		extra := map[string]any{"reviewed_by": reviewer, "reviewed_at": now, "rejection_reason": req.Reason}
		var moved bool
		err := d.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
			var err error
			if moved, err = transition(tx, &c, status, extra, models.StatusPending); err != nil || !moved {
				return err
			}
			_, err = d.Approvals.Revoke(tx, c.ID)
			return err
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "review failed")
			return
		}
		if !moved {
			respondError(w, http.StatusConflict, "contract changed concurrently")
			return
		}
		c.ReviewedBy, c.ReviewedAt, c.RejectionReason = &reviewer, &now, req.Reason
		audit(r.Context(), d, action, &c.ID, map[string]any{"reason": req.Reason})
		d.Notify.Emit(r.Context(), notify.Event{
			Type:        eventType,
			ActorID:     reviewer,
			RecipientID: c.OwnerID,
			Link:        "/v1/contracts/" + c.ID,
			Key:         c.ID,
			Vars:        map[string]string{"reference": c.ReferenceNumber, "reason": req.Reason},
			Data:        map[string]any{"contract_id": c.ID},
		})
		respondJSON(w, c)
	}
}
