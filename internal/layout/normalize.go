package layout

import (
	"fmt"
	"strings"
)

var sectionAliases = map[string]SectionType{
	"title":             SectionTitle,
	"heading":           SectionTitle,
	"header":            SectionTitle,
	"h1":                SectionTitle,
	"contract_title":    SectionTitle,
	"note":              SectionNote,
	"notes":             SectionNote,
	"notice":            SectionNote,
	"remark":            SectionNote,
	"footnote":          SectionNote,
	"disclaimer":        SectionNote,
	"text":              SectionText,
	"paragraph":         SectionText,
	"body":              SectionText,
	"content":           SectionText,
	"clause":            SectionText,
	"terms":             SectionText,
	"responsibilities":  SectionText,
	"photo_section":     SectionPhoto,
	"photo":             SectionPhoto,
	"photos":            SectionPhoto,
	"image":             SectionPhoto,
	"images":            SectionPhoto,
	"gallery":           SectionPhoto,
	"picture":           SectionPhoto,
	"signature":         SectionSignature,
	"signatures":        SectionSignature,
	"signature_section": SectionSignature,
	"sign":              SectionSignature,
	"stamp":             SectionSignature,
}

// ResolveSectionType maps a stored type name onto the closed section set.
func ResolveSectionType(raw string) (SectionType, bool) {
	k := strings.ToLower(strings.TrimSpace(raw))
	k = strings.NewReplacer("-", "_", " ", "_").Replace(k)
	t, ok := sectionAliases[k]
	return t, ok
}

type parser struct {
	rec      map[string]any
	strict   bool
	problems []string
}

func (p *parser) problem(format string, args ...any) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

// Normalize builds a document from rec, preferring the newest shape
// present: contract_template.pages, then pages, then contract_layout.pages,
// then flat contract_data fields, then the contract columns themselves.
// It never fails; missing values become empty strings or placeholders.
func Normalize(rec Record, opts Options) (doc Document) {
	defer func() {
		if r := recover(); r != nil {
			doc = fallback(rec, opts)
		}
	}()
	if rec == nil {
		rec = Record{}
	}
	p := &parser{rec: rec}
	doc, ok := p.fromShapes()
	if !ok || doc.SectionCount() == 0 {
		return fallback(rec, opts)
	}
	return finish(doc)
}

func (p *parser) fromShapes() (Document, bool) {
	if tpl, ok := asMap(p.rec["contract_template"]); ok {
		if pages, ok := p.pages(tpl["pages"], first(tpl, "letterhead_url", "letterheadUrl")); ok {
			return Document{Pages: pages, Source: SourceTemplate, Version: orString(first(tpl, "version", "schema_version"), "1")}, true
		}
	}
	if pages, ok := p.pages(p.rec["pages"], ""); ok {
		return Document{Pages: pages, Source: SourcePages}, true
	}
	if cl, ok := asMap(p.rec["contract_layout"]); ok {
		if pages, ok := p.pages(cl["pages"], first(cl, "letterhead_url", "letterheadUrl")); ok {
			return Document{Pages: pages, Source: SourceLayout}, true
		}
	} else if pages, ok := p.pages(p.rec["contract_layout"], ""); ok {
		return Document{Pages: pages, Source: SourceLayout}, true
	}
	if data, ok := asMap(p.rec["contract_data"]); ok {
		f := readFlat(data).merge(readFlat(p.rec))
		if f.meaningful() {
			return Document{Pages: []Page{f.page()}, Source: SourceContractData}, true
		}
	}
	if f := readFlat(p.rec); f.meaningful() {
		return Document{Pages: []Page{f.page()}, Source: SourceColumns}, true
	}
	return Document{}, false
}

// pages reads a pages array. Outside strict mode a shape without a single
// section is treated as absent so older shapes still get a chance.
func (p *parser) pages(v any, letterhead string) ([]Page, bool) {
	items, ok := asSlice(v)
	if !ok || len(items) == 0 {
		return nil, false
	}
	defaultLetterhead := orString(letterhead, first(p.rec, "letterhead_url", "letterheadUrl"))
	out := make([]Page, 0, len(items))
	for i, item := range items {
		page := Page{LetterheadURL: defaultLetterhead}
		var sections []any
		if m, ok := asMap(item); ok {
			page.LetterheadURL = orString(first(m, "letterhead_url", "letterheadUrl", "letterhead", "background_url"), defaultLetterhead)
			for _, k := range []string{"sections", "elements", "blocks"} {
				if s, ok := asSlice(m[k]); ok {
					sections = s
					break
				}
			}
		} else if s, ok := asSlice(item); ok {
			sections = s
		} else {
			p.problem("page %d: not an object", i+1)
			continue
		}
		page.Sections = make([]Section, 0, len(sections))
		for j, raw := range sections {
			if sec, ok := p.section(raw, i+1, j+1); ok {
				page.Sections = append(page.Sections, sec)
			}
		}
		out = append(out, page)
	}
	if !p.strict && (Document{Pages: out}).SectionCount() == 0 {
		return nil, false
	}
	return out, len(out) > 0
}

func (p *parser) section(raw any, page, idx int) (Section, bool) {
	m, ok := asMap(raw)
	if !ok {
		if s := str(raw); s != "" && !p.strict {
			return Section{Type: SectionText, Content: Text{EN: s}}, true
		}
		p.problem("page %d section %d: not an object", page, idx)
		return Section{}, false
	}
	typeName := first(m, "type", "kind", "section_type", "sectionType")
	t, known := ResolveSectionType(typeName)
	if !known {
		if p.strict {
			p.problem("page %d section %d: unknown type %q", page, idx, typeName)
			return Section{}, false
		}
		t = inferType(m)
	}

	sec := Section{
		Type:    t,
		Title:   bilingual(m, "title", "heading", "label"),
		Content: bilingual(m, "content", "text", "body", "value"),
	}
	switch t {
	case SectionPhoto:
		sec.Photos = readPhotos(m)
	case SectionSignature:
		sec.Signature = p.readSignature(m)
	}
	return sec, true
}

func inferType(m map[string]any) SectionType {
	switch {
	case m["photos"] != nil || m["images"] != nil || first(m, "image_url", "photo_url", "src") != "":
		return SectionPhoto
	case m["first_party_signature"] != nil || m["stamp_url"] != nil || m["signatures"] != nil:
		return SectionSignature
	}
	return SectionText
}

func readPhotos(m map[string]any) []Photo {
	var out []Photo
	for _, k := range []string{"photos", "images"} {
		items, ok := asSlice(m[k])
		if !ok {
			continue
		}
		for _, item := range items {
			if obj, ok := asMap(item); ok {
				if u := first(obj, "url", "src", "image_url", "photo_url"); u != "" {
					out = append(out, Photo{URL: u, Caption: bilingual(obj, "caption", "title", "label")})
				}
			} else if u := str(item); u != "" {
				out = append(out, Photo{URL: u})
			}
		}
	}
	if u := first(m, "url", "image_url", "photo_url", "src"); u != "" {
		out = append(out, Photo{URL: u, Caption: bilingual(m, "caption")})
	}
	return out
}

func (p *parser) readSignature(m map[string]any) *Signature {
	src := m
	for _, k := range []string{"signatures", "signature"} {
		if nested, ok := asMap(m[k]); ok {
			src = nested
			break
		}
	}
	cols := readFlat(p.rec)
	return &Signature{
		FirstPartyName:          orText(bilingual(src, "first_party_name", "firstPartyName", "first_party"), cols.firstParty),
		SecondPartyName:         orText(bilingual(src, "second_party_name", "secondPartyName", "second_party"), cols.secondParty),
		FirstPartySignatureURL:  orString(first(src, "first_party_signature", "first_party_signature_url", "signature_url"), cols.signatureURL),
		SecondPartySignatureURL: first(src, "second_party_signature", "second_party_signature_url"),
		StampURL:                orString(first(src, "stamp", "stamp_url"), cols.stampURL),
	}
}

// ParsePages validates a submitted pages array without any fallback: every
// page must be an object or array and every section must carry a known type.
func ParsePages(v any) ([]Page, error) {
	p := &parser{rec: Record{}, strict: true}
	pages, ok := p.pages(v, "")
	if !ok {
		return nil, fmt.Errorf("pages: expected a non-empty array")
	}
	if len(p.problems) > 0 {
		return nil, fmt.Errorf("pages: %s", strings.Join(p.problems, "; "))
	}
	for i, pg := range pages {
		if len(pg.Sections) == 0 {
			return nil, fmt.Errorf("pages: page %d has no sections", i+1)
		}
	}
	return pages, nil
}

func fallback(rec Record, opts Options) Document {
	if opts.Mock {
		return Mock(rec)
	}
	return finish(placeholder(rec))
}

// finish guarantees non-nil slices so renderers never branch on nil.
func finish(doc Document) Document {
	if doc.Pages == nil {
		doc.Pages = []Page{}
	}
	for i := range doc.Pages {
		if doc.Pages[i].Sections == nil {
			doc.Pages[i].Sections = []Section{}
		}
		for j := range doc.Pages[i].Sections {
			s := &doc.Pages[i].Sections[j]
			if !s.Type.Valid() {
				s.Type = SectionText
			}
			if s.Type == SectionSignature && s.Signature == nil {
				s.Signature = &Signature{}
			}
		}
	}
	return doc
}
