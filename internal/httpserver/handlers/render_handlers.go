package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"contractdesk/internal/layout"
	"contractdesk/internal/models"
	"contractdesk/internal/render"
)

// contractDocument normalizes whatever layout shape the row carries.
func contractDocument(d *Deps, c models.Contract) layout.Document {
	return layout.Normalize(layout.FromContract(c), layout.Options{Mock: d.Config.MockEnabled()})
}

func contractMeta(c models.Contract) render.Meta {
	return render.Meta{ReferenceNumber: c.ReferenceNumber, Status: c.Status}
}

func ContractLayout(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContract(w, r, d)
		if !ok {
			return
		}
		respondJSON(w, map[string]any{
			"contract_id":      c.ID,
			"reference_number": c.ReferenceNumber,
			"status":           c.Status,
			"document":         contractDocument(d, c),
		})
	}
}

func ContractHTML(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContract(w, r, d)
		if !ok {
			return
		}
		out, err := render.HTML(contractDocument(d, c), contractMeta(c))
		if err != nil {
			d.Log.Errorw("html render failed", "contract_id", c.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "render failed")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(out)
	}
}

func pdfPath(d *Deps, id string) string {
	return filepath.Join(d.Config.StorageDir, id+".pdf")
}

func removeStoredPDF(d *Deps, id string) {
	if err := os.Remove(pdfPath(d, id)); err != nil && !os.IsNotExist(err) {
		d.Log.Warnw("pdf cleanup failed", "contract_id", id, "error", err)
	}
}

// openStoredPDF returns the generated file only while the row still
// references it and the file is not older than the last edit.
func openStoredPDF(d *Deps, c models.Contract) (*os.File, error) {
	if c.PDFURL == nil {
		return nil, os.ErrNotExist
	}
	f, err := os.Open(pdfPath(d, c.ID))
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err != nil || st.ModTime().Before(c.UpdatedAt) {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

// GeneratePDF renders the contract, stores the file and records pdf_url.
func GeneratePDF(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContract(w, r, d)
		if !ok {
			return
		}
		data, err := d.PDF.RenderPDF(r.Context(), contractDocument(d, c), contractMeta(c))
		if err != nil {
			d.Log.Errorw("pdf render failed", "contract_id", c.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "pdf generation failed")
			return
		}
		if err := os.MkdirAll(d.Config.StorageDir, 0o755); err != nil {
			d.Log.Errorw("storage dir", "dir", d.Config.StorageDir, "error", err)
			respondError(w, http.StatusInternalServerError, "pdf storage failed")
			return
		}
		path := pdfPath(d, c.ID)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			d.Log.Errorw("pdf write failed", "path", tmp, "error", err)
			respondError(w, http.StatusInternalServerError, "pdf storage failed")
			return
		}
		if err := os.Rename(tmp, path); err != nil {
			d.Log.Errorw("pdf rename failed", "path", path, "error", err)
			respondError(w, http.StatusInternalServerError, "pdf storage failed")
			return
		}
		url := "/v1/contracts/" + c.ID + "/pdf"
		if err := d.DB.WithContext(r.Context()).Model(&models.Contract{}).Where("id = ?", c.ID).UpdateColumn("pdf_url", url).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "could not record pdf")
			return
		}
		audit(r.Context(), d, "contract.pdf_generated", &c.ID, map[string]any{"bytes": len(data)})
		respondStatus(w, http.StatusCreated, map[string]any{"pdf_url": url, "bytes": len(data)})
	}
}

// DownloadPDF serves the stored file, rendering on the fly when none has
// been generated yet.
func DownloadPDF(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := loadContract(w, r, d)
		if !ok {
			return
		}
		name := fmt.Sprintf("%s.pdf", c.ReferenceNumber)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if f, err := openStoredPDF(d, c); err == nil {
			defer f.Close()
			w.Header().Set("Content-Type", "application/pdf")
			http.ServeContent(w, r, name, c.UpdatedAt, f)
			return
		}
		data, err := d.PDF.RenderPDF(r.Context(), contractDocument(d, c), contractMeta(c))
		if err != nil {
			w.Header().Del("Content-Disposition")
			d.Log.Errorw("pdf render failed", "contract_id", c.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "pdf generation failed")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		http.ServeContent(w, r, name, time.Now(), bytes.NewReader(data))
	}
}
