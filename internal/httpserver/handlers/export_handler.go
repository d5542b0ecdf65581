package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"contractdesk/internal/auth"
	"contractdesk/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportLimit = 5000

var exportHeaders = []string{
	"Reference", "Title", "Status", "First party (EN)", "First party (AR)",
	"Second party (EN)", "Second party (AR)", "Start", "End", "Created",
}

// ExportContracts writes the caller's visible contracts, with the same q
// and status filters as the list, to an XLSX workbook.
func ExportContracts(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		q := r.URL.Query()
		status := q.Get("status")
		if status != "" && !validStatus(status) {
			respondError(w, http.StatusBadRequest, "unknown status")
			return
		}
		var cs []models.Contract
		err := d.DB.WithContext(r.Context()).
			Scopes(contractFilter(claims, strings.TrimSpace(q.Get("q")), status, q.Get("owner_id"))).
			Order("created_at desc").Limit(exportLimit).Find(&cs).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not list contracts")
			return
		}
		f, err := contractsWorkbook(cs)
		if err != nil {
			d.Log.Errorw("xlsx build failed", "error", err)
			respondError(w, http.StatusInternalServerError, "export failed")
			return
		}
		defer f.Close()
		fileName := fmt.Sprintf("contracts_%s.xlsx", time.Now().Format("20060102_150405"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		if err := f.Write(w); err != nil {
			d.Log.Errorw("xlsx write failed", "error", err)
		}
	}
}

func contractsWorkbook(cs []models.Contract) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Contracts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i, c := range cs {
		row := []any{
			c.ReferenceNumber, c.Title, c.Status, c.FirstPartyNameEN, c.FirstPartyNameAR,
			c.SecondPartyNameEN, c.SecondPartyNameAR, dateCell(c.StartDate), dateCell(c.EndDate),
			c.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func dateCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
