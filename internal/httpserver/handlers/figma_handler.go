package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/layout"
	"contractdesk/internal/models"
)

type figmaContractReq struct {
	Title             string          `json:"title"`
	FirstPartyNameEN  string          `json:"first_party_name_en"`
	FirstPartyNameAR  string          `json:"first_party_name_ar"`
	SecondPartyNameEN string          `json:"second_party_name_en"`
	SecondPartyNameAR string          `json:"second_party_name_ar"`
	StartDate         string          `json:"start_date"`
	EndDate           string          `json:"end_date"`
	LetterheadURL     string          `json:"letterhead_url"`
	Pages             json.RawMessage `json:"pages"`
}

// FigmaCreateContract accepts a design exported by the Figma plugin and
// stores it as a draft contract whose layout is the validated pages.
func FigmaCreateContract(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req figmaContractReq
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var rawPages any
		if err := json.Unmarshal(req.Pages, &rawPages); err != nil {
			respondError(w, http.StatusBadRequest, "pages: invalid JSON")
			return
		}
		pages, err := layout.ParsePages(rawPages)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		c := models.Contract{
			OwnerID:           auth.Subject(r.Context()),
			Title:             strings.TrimSpace(req.Title),
			FirstPartyNameEN:  strings.TrimSpace(req.FirstPartyNameEN),
			FirstPartyNameAR:  strings.TrimSpace(req.FirstPartyNameAR),
			SecondPartyNameEN: strings.TrimSpace(req.SecondPartyNameEN),
			SecondPartyNameAR: strings.TrimSpace(req.SecondPartyNameAR),
			LetterheadURL:     strings.TrimSpace(req.LetterheadURL),
			Status:            models.StatusDraft,
			Layout:            models.MustJSONB(map[string]any{"pages": pages, "source": "figma"}),
		}
		if c.StartDate, err = parseDate(req.StartDate); err != nil {
			respondError(w, http.StatusBadRequest, "start_date: "+err.Error())
			return
		}
		if c.EndDate, err = parseDate(req.EndDate); err != nil {
			respondError(w, http.StatusBadRequest, "end_date: "+err.Error())
			return
		}
		if err := validateContract(c); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		now := time.Now()
		c.CreatedAt, c.UpdatedAt = now, now
		if err := insertContract(r, d, &c); err != nil {
			d.Log.Errorw("figma contract insert failed", "error", err)
			respondError(w, http.StatusInternalServerError, "could not create contract")
			return
		}
		audit(r.Context(), d, "contract.figma_export", &c.ID, map[string]any{"pages": len(pages)})
		respondStatus(w, http.StatusCreated, map[string]any{"id": c.ID, "reference_number": c.ReferenceNumber, "status": c.Status})
	}
}
