package layout

import (
	"encoding/json"

	"contractdesk/internal/models"
)

// FromContract flattens a stored contract into a Record. Layout JSON is
// merged at the top level when it is an object and treated as the pages
// array when it is an array.
func FromContract(c models.Contract) Record {
	rec := Record{
		"id":                   c.ID,
		"reference_number":     c.ReferenceNumber,
		"title":                c.Title,
		"first_party_name":     c.FirstPartyNameEN,
		"first_party_name_ar":  c.FirstPartyNameAR,
		"second_party_name":    c.SecondPartyNameEN,
		"second_party_name_ar": c.SecondPartyNameAR,
		"start_date":           c.StartDate,
		"end_date":             c.EndDate,
		"responsibilities":     c.ResponsibilitiesEN,
		"responsibilities_ar":  c.ResponsibilitiesAR,
		"signature_url":        c.SignatureURL,
		"stamp_url":            c.StampURL,
		"letterhead_url":       c.LetterheadURL,
		"status":               c.Status,
	}
	if !c.Layout.IsEmpty() {
		var v any
		if json.Unmarshal(c.Layout, &v) == nil {
			switch t := v.(type) {
			case map[string]any:
				for k, val := range t {
					if _, taken := rec[k]; !taken || k == "pages" {
						rec[k] = val
					}
				}
			case []any:
				rec["pages"] = t
			}
		}
	}
	if !c.ContractData.IsEmpty() {
		var v any
		if json.Unmarshal(c.ContractData, &v) == nil {
			rec["contract_data"] = v
		}
	}
	return rec
}
