package handlers

import (
	"errors"
	"net/http"
	"strings"

	"contractdesk/internal/approval"
	"contractdesk/internal/auth"
	"contractdesk/internal/events"
	"contractdesk/internal/models"
	"contractdesk/internal/notify"

	"github.com/go-chi/chi/v5"
)

// IssueApprovalToken creates a single-use link for an external party. The
// contract must already be pending.
func IssueApprovalToken(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContract(w, r, d)
		if !ok {
			return
		}
		if !canModify(auth.FromContext(r.Context()), c) {
			respondError(w, http.StatusForbidden, "only the owner or an admin may share this contract")
			return
		}
		if c.Status != models.StatusPending {
			respondError(w, http.StatusConflict, "contract must be submitted before sharing for approval")
			return
		}
		var req struct {
			PartyEmail string `json:"party_email"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !validEmail(normalizeEmail(req.PartyEmail)) {
			respondError(w, http.StatusBadRequest, "valid party_email required")
			return
		}
		raw, tok, err := d.Approvals.Issue(r.Context(), c.ID, req.PartyEmail, auth.Subject(r.Context()))
		if err != nil {
			d.Log.Errorw("approval token issue failed", "contract_id", c.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		audit(r.Context(), d, "approval_token.issued", &c.ID, map[string]any{"token_id": tok.ID, "party_email": tok.PartyEmail})
		respondStatus(w, http.StatusCreated, map[string]any{
			"token":       raw,
			"link":        strings.TrimRight(d.Config.PublicBaseURL, "/") + "/v1/approvals/" + raw,
			"expires_at":  tok.ExpiresAt,
			"party_email": tok.PartyEmail,
		})
	}
}

// revokeApprovalLinks ends outstanding links once the contract they were
// issued for has changed.
func revokeApprovalLinks(r *http.Request, d *Deps, contractID string) {
	n, err := d.Approvals.Revoke(d.DB.WithContext(r.Context()), contractID)
	if err != nil {
		d.Log.Errorw("approval token revoke failed", "contract_id", contractID, "error", err)
		return
	}
	if n > 0 {
		audit(r.Context(), d, "approval_token.revoked", &contractID, map[string]any{"count": n})
	}
}

func approvalStatus(err error) (int, string) {
	switch {
	case errors.Is(err, approval.ErrTokenNotFound):
		return http.StatusNotFound, "approval link not found"
	case errors.Is(err, approval.ErrTokenUsed):
		return http.StatusConflict, "approval link already used"
	case errors.Is(err, approval.ErrTokenExpired):
		return http.StatusGone, "approval link expired"
	case errors.Is(err, approval.ErrTokenRevoked):
		return http.StatusGone, "approval link no longer valid"
	case errors.Is(err, approval.ErrInvalidDecision):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, approval.ErrNotPending):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "approval failed"
}

// ViewApproval shows the contract summary and layout behind a public link.
func ViewApproval(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, c, err := d.Approvals.Lookup(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			status, msg := approvalStatus(err)
			respondError(w, status, msg)
			return
		}
		respondJSON(w, map[string]any{
			"reference_number":     c.ReferenceNumber,
			"title":                c.Title,
			"status":               c.Status,
			"first_party_name_en":  c.FirstPartyNameEN,
			"first_party_name_ar":  c.FirstPartyNameAR,
			"second_party_name_en": c.SecondPartyNameEN,
			"second_party_name_ar": c.SecondPartyNameAR,
			"start_date":           c.StartDate,
			"end_date":             c.EndDate,
			"party_email":          tok.PartyEmail,
			"expires_at":           tok.ExpiresAt,
			"document":             contractDocument(d, c),
		})
	}
}

func RedeemApproval(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Decision     string `json:"decision"`
			Comment      string `json:"comment"`
			CaptchaToken string `json:"captcha_token"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := d.Captcha.Verify(r.Context(), req.CaptchaToken, r.RemoteAddr); err != nil {
			respondError(w, http.StatusBadRequest, "captcha verification failed")
			return
		}
		decision := strings.ToLower(strings.TrimSpace(req.Decision))
		tok, c, err := d.Approvals.Redeem(r.Context(), chi.URLParam(r, "token"), decision, strings.TrimSpace(req.Comment))
		if err != nil {
			status, msg := approvalStatus(err)
			if status == http.StatusInternalServerError {
				d.Log.Errorw("approval redeem failed", "error", err)
			}
			respondError(w, status, msg)
			return
		}
		audit(r.Context(), d, "approval_token.redeemed", &c.ID, map[string]any{"token_id": tok.ID, "decision": decision, "party_email": tok.PartyEmail})
		d.Notify.Emit(r.Context(), notify.Event{
			Type:        events.ApprovalRedeemed,
			RecipientID: c.OwnerID,
			Link:        "/v1/contracts/" + c.ID,
			Key:         c.ID,
			Vars:        map[string]string{"party": tok.PartyEmail, "decision": decision, "reference": c.ReferenceNumber},
			Data:        map[string]any{"contract_id": c.ID, "token_id": tok.ID, "status": c.Status},
		})
		respondJSON(w, map[string]any{"reference_number": c.ReferenceNumber, "status": c.Status, "decision": decision})
	}
}
