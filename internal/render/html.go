// Package render turns a normalized layout document into bilingual HTML
// for print and into PDF.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"contractdesk/internal/layout"
)

// Meta carries row-level data printed around the document body.
type Meta struct {
	ReferenceNumber string
	Status          string
}

var funcs = template.FuncMap{
	"lines": func(s string) []string {
		if s == "" {
			return nil
		}
		return strings.Split(s, "\n")
	},
	"heading": func(s layout.Section) layout.Text {
		if !s.Title.Empty() {
			return s.Title
		}
		return s.Content
	},
}

var pageTmpl = template.Must(template.New("contract").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Meta.ReferenceNumber}}</title>
<style>
@page { size: A4; margin: 0; }
body { margin: 0; font-family: "Noto Sans", "Amiri", sans-serif; font-size: 12pt; }
.page { position: relative; width: 210mm; min-height: 297mm; padding: 35mm 18mm 25mm; box-sizing: border-box; page-break-after: always; background-size: cover; }
.page:last-child { page-break-after: auto; }
.row { display: flex; gap: 10mm; margin-bottom: 5mm; }
.en, .ar { flex: 1; }
.ar { direction: rtl; text-align: right; font-family: "Amiri", "Noto Naskh Arabic", serif; }
.title { text-align: center; }
.title h1 { font-size: 18pt; margin: 0 0 2mm; }
.note { font-size: 10pt; font-style: italic; border-left: 2px solid #999; padding-left: 3mm; }
.photos { display: flex; flex-wrap: wrap; gap: 4mm; }
.photos figure { margin: 0; width: 50mm; }
.photos img { width: 100%; }
.placeholder { width: 50mm; height: 35mm; border: 1px dashed #999; }
.sign { display: flex; justify-content: space-between; margin-top: 10mm; }
.sign div { width: 45%; text-align: center; }
.sign img { max-height: 25mm; }
.ref { position: absolute; bottom: 10mm; right: 18mm; font-size: 9pt; color: #666; }
</style>
</head>
<body>
{{- range .Doc.Pages}}
<section class="page"{{if .LetterheadURL}} style="background-image:url('{{.LetterheadURL}}')"{{end}}>
{{- range .Sections}}
{{- if eq .Type "title"}}
{{- $h := heading .}}
<div class="row title"><div class="en"><h1>{{$h.EN}}</h1>{{if not .Title.Empty}}{{.Content.EN}}{{end}}</div><div class="ar" lang="ar" dir="rtl"><h1>{{$h.AR}}</h1>{{if not .Title.Empty}}{{.Content.AR}}{{end}}</div></div>
{{- else if eq .Type "note"}}
<div class="row note"><div class="en">{{if .Title.EN}}<strong>{{.Title.EN}}:</strong> {{end}}{{.Content.EN}}</div><div class="ar" lang="ar" dir="rtl">{{if .Title.AR}}<strong>{{.Title.AR}}:</strong> {{end}}{{.Content.AR}}</div></div>
{{- else if eq .Type "photo_section"}}
<div class="row"><div class="en"><h3>{{.Title.EN}}</h3></div><div class="ar" lang="ar" dir="rtl"><h3>{{.Title.AR}}</h3></div></div>
<div class="photos">{{range .Photos}}<figure><img src="{{.URL}}" alt="{{.Caption.EN}}"><figcaption>{{.Caption.EN}} {{.Caption.AR}}</figcaption></figure>{{else}}<div class="placeholder"></div>{{end}}</div>
{{- else if eq .Type "signature"}}
{{- with .Signature}}
<div class="sign">
<div>{{if .FirstPartySignatureURL}}<img src="{{.FirstPartySignatureURL}}" alt="signature">{{end}}<p>{{.FirstPartyName.EN}}</p><p lang="ar" dir="rtl">{{.FirstPartyName.AR}}</p><p>First Party / الطرف الأول</p></div>
<div>{{if .SecondPartySignatureURL}}<img src="{{.SecondPartySignatureURL}}" alt="signature">{{end}}<p>{{.SecondPartyName.EN}}</p><p lang="ar" dir="rtl">{{.SecondPartyName.AR}}</p><p>Second Party / الطرف الثاني</p></div>
</div>
{{- if .StampURL}}<div class="title"><img src="{{.StampURL}}" alt="stamp" style="max-height:30mm"></div>{{end}}
{{- end}}
{{- else}}
<div class="row"><div class="en">{{if .Title.EN}}<h3>{{.Title.EN}}</h3>{{end}}{{range lines .Content.EN}}<p>{{.}}</p>{{end}}</div><div class="ar" lang="ar" dir="rtl">{{if .Title.AR}}<h3>{{.Title.AR}}</h3>{{end}}{{range lines .Content.AR}}<p>{{.}}</p>{{end}}</div></div>
{{- end}}
{{- end}}
{{- if $.Meta.ReferenceNumber}}<div class="ref">{{$.Meta.ReferenceNumber}}</div>{{end}}
</section>
{{- end}}
</body>
</html>
`))

// HTML renders doc as a printable bilingual page sequence. Every value is
// escaped by html/template.
func HTML(doc layout.Document, meta Meta) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTmpl.Execute(&buf, struct {
		Doc  layout.Document
		Meta Meta
	}{doc, meta})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
