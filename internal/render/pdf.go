package render

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"contractdesk/internal/layout"

	"github.com/go-pdf/fpdf"
)

// PDFEngine produces a PDF for a normalized document.
type PDFEngine interface {
	RenderPDF(ctx context.Context, doc layout.Document, meta Meta) ([]byte, error)
}

// ImageLoader fetches an image referenced by URL. A failed load is drawn as
// an empty frame.
type ImageLoader func(ctx context.Context, url string) ([]byte, error)

const arabicFamily = "arabic"

// PDFRenderer draws documents with fpdf. Arabic text needs a UTF-8 TrueType
// font; without one only the English side is drawn.
type PDFRenderer struct {
	arabicFont []byte
	images     ImageLoader
}

// NewPDFRenderer loads the first TrueType font in fontDir, preferring files
// whose name suggests Arabic coverage. An empty fontDir is allowed.
func NewPDFRenderer(fontDir string, images ImageLoader) (*PDFRenderer, error) {
	r := &PDFRenderer{images: images}
	if fontDir == "" {
		return r, nil
	}
	matches, err := filepath.Glob(filepath.Join(fontDir, "*.ttf"))
	if err != nil {
		return nil, fmt.Errorf("scan font dir: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no .ttf font in %s", fontDir)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return arabicScore(matches[i]) > arabicScore(matches[j])
	})
	r.arabicFont, err = os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return r, nil
}

func arabicScore(path string) int {
	name := strings.ToLower(filepath.Base(path))
	for _, hint := range []string{"arab", "amiri", "naskh", "cairo", "tajawal"} {
		if strings.Contains(name, hint) {
			return 1
		}
	}
	return 0
}

func (r *PDFRenderer) HasArabic() bool { return len(r.arabicFont) > 0 }

type pdfWriter struct {
	ctx    context.Context
	pdf    *fpdf.Fpdf
	tr     func(string) string
	arabic bool
	images ImageLoader
	seq    int
}

func (r *PDFRenderer) RenderPDF(ctx context.Context, doc layout.Document, meta Meta) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 35, 18)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetCreator("contractdesk", true)
	pdf.SetTitle(meta.ReferenceNumber, true)
	if r.HasArabic() {
		pdf.AddUTF8FontFromBytes(arabicFamily, "", r.arabicFont)
	}
	w := &pdfWriter{
		ctx:    ctx,
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		arabic: r.HasArabic(),
		images: r.images,
	}
	pdf.SetFooterFunc(func() {
		if meta.ReferenceNumber == "" {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, w.tr(meta.ReferenceNumber), "", 0, "R", false, 0, "")
	})

	pages := doc.Pages
	if len(pages) == 0 {
		pages = []layout.Page{{}}
	}
	for _, page := range pages {
		pdf.AddPage()
		w.letterhead(page.LetterheadURL)
		for _, s := range page.Sections {
			w.section(s)
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("draw pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) en(style string, size float64, text, align string) {
	if text == "" {
		return
	}
	w.pdf.SetFont("Helvetica", style, size)
	w.pdf.MultiCell(0, size*0.5, w.tr(text), "", align, false)
}

func (w *pdfWriter) ar(size float64, text string) {
	if text == "" || !w.arabic {
		return
	}
	w.pdf.SetFont(arabicFamily, "", size)
	w.pdf.RTL()
	w.pdf.MultiCell(0, size*0.55, text, "", "R", false)
	w.pdf.LTR()
}

func (w *pdfWriter) pair(style string, size float64, t layout.Text, align string) {
	w.en(style, size, t.EN, align)
	w.ar(size, t.AR)
}

func (w *pdfWriter) section(s layout.Section) {
	switch s.Type {
	case layout.SectionTitle:
		heading := s.Title
		body := s.Content
		if heading.Empty() {
			heading, body = s.Content, layout.Text{}
		}
		w.pair("B", 18, heading, "C")
		w.pair("", 10, body, "C")
	case layout.SectionNote:
		w.pdf.SetTextColor(90, 90, 90)
		w.pair("B", 9, s.Title, "L")
		w.pair("I", 9, s.Content, "L")
		w.pdf.SetTextColor(0, 0, 0)
	case layout.SectionPhoto:
		w.pair("B", 12, s.Title, "L")
		w.photos(s.Photos)
	case layout.SectionSignature:
		w.signature(s)
	default:
		w.pair("B", 12, s.Title, "L")
		w.pair("", 11, s.Content, "J")
	}
	w.pdf.Ln(4)
}

func (w *pdfWriter) photos(photos []layout.Photo) {
	const width, height, gap = 50.0, 35.0, 5.0
	left, _, right, _ := w.pdf.GetMargins()
	pageW, _ := w.pdf.GetPageSize()
	x, y := left, w.pdf.GetY()
	if len(photos) == 0 {
		w.pdf.Rect(x, y, width, height, "D")
		w.pdf.SetY(y + height)
		return
	}
	for _, p := range photos {
		if x+width > pageW-right {
			x, y = left, y+height+gap
		}
		if !w.image(p.URL, x, y, width, height) {
			w.pdf.Rect(x, y, width, height, "D")
		}
		x += width + gap
	}
	w.pdf.SetY(y + height)
}

func (w *pdfWriter) signature(s layout.Section) {
	sig := s.Signature
	if sig == nil {
		sig = &layout.Signature{}
	}
	w.pair("B", 12, s.Title, "C")
	left, _, right, _ := w.pdf.GetMargins()
	pageW, _ := w.pdf.GetPageSize()
	colW := (pageW - left - right - 10) / 2
	y := w.pdf.GetY() + 2

	blocks := []struct {
		url   string
		name  layout.Text
		label string
		x     float64
	}{
		{sig.FirstPartySignatureURL, sig.FirstPartyName, "First Party", left},
		{sig.SecondPartySignatureURL, sig.SecondPartyName, "Second Party", left + colW + 10},
	}
	bottom := y
	for _, b := range blocks {
		if b.url == "" || !w.image(b.url, b.x+colW/4, y, colW/2, 20) {
			w.pdf.Line(b.x+5, y+20, b.x+colW-5, y+20)
		}
		w.pdf.SetXY(b.x, y+22)
		w.pdf.SetFont("Helvetica", "", 10)
		w.pdf.CellFormat(colW, 5, w.tr(b.name.EN), "", 2, "C", false, 0, "")
		if w.arabic && b.name.AR != "" {
			w.pdf.SetFont(arabicFamily, "", 10)
			w.pdf.RTL()
			w.pdf.CellFormat(colW, 5, b.name.AR, "", 2, "C", false, 0, "")
			w.pdf.LTR()
		}
		w.pdf.SetFont("Helvetica", "I", 8)
		w.pdf.CellFormat(colW, 4, b.label, "", 2, "C", false, 0, "")
		if yy := w.pdf.GetY(); yy > bottom {
			bottom = yy
		}
	}
	w.pdf.SetXY(left, bottom)
	if sig.StampURL != "" {
		w.image(sig.StampURL, pageW/2-15, bottom+2, 30, 30)
		w.pdf.SetY(bottom + 34)
	}
}

func (w *pdfWriter) letterhead(url string) {
	if url == "" {
		return
	}
	pageW, pageH := w.pdf.GetPageSize()
	w.image(url, 0, 0, pageW, pageH)
	_, top, _, _ := w.pdf.GetMargins()
	w.pdf.SetY(top)
}

// image draws url into the box and reports whether it succeeded.
func (w *pdfWriter) image(url string, x, y, width, height float64) bool {
	if w.images == nil || url == "" {
		return false
	}
	data, err := w.images(w.ctx, url)
	if err != nil || len(data) == 0 {
		return false
	}
	kind := imageType(data)
	if kind == "" {
		return false
	}
	w.seq++
	name := fmt.Sprintf("img%d", w.seq)
	opts := fpdf.ImageOptions{ImageType: kind}
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if !w.pdf.Ok() {
		w.pdf.ClearError()
		return false
	}
	w.pdf.ImageOptions(name, x, y, width, height, false, opts, 0, "")
	if !w.pdf.Ok() {
		w.pdf.ClearError()
		return false
	}
	return true
}

func imageType(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	case "image/gif":
		return "GIF"
	}
	return ""
}
