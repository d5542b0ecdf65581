package layout

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"contractdesk/internal/models"
)

func decode(raw string) Record {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec == nil {
		return Record{}
	}
	return rec
}

func assertUnion(t *testing.T, doc Document) {
	t.Helper()
	if doc.Pages == nil {
		t.Fatalf("pages must not be nil")
	}
	for i, p := range doc.Pages {
		if p.Sections == nil {
			t.Fatalf("page %d sections must not be nil", i)
		}
		for j, s := range p.Sections {
			if !s.Type.Valid() {
				t.Fatalf("page %d section %d has type %q outside the union", i, j, s.Type)
			}
			if s.Type == SectionSignature && s.Signature == nil {
				t.Fatalf("signature section without payload")
			}
		}
	}
}

func TestShapePreference(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Source
	}{
		{
			name: "template wins over everything",
			raw:  `{"contract_template":{"version":2,"pages":[{"sections":[{"type":"title","title":"T"}]}]},"pages":[{"sections":[{"type":"text","content":"legacy"}]}]}`,
			want: SourceTemplate,
		},
		{
			name: "direct pages",
			raw:  `{"pages":[{"letterhead_url":"lh.png","sections":[{"type":"paragraph","content":{"en":"a","ar":"ب"}}]}],"contract_layout":{"pages":[{"sections":[{"type":"note"}]}]}}`,
			want: SourcePages,
		},
		{
			name: "nested layout",
			raw:  `{"contract_layout":{"pages":[{"sections":[{"type":"heading","text":"H"}]}]}}`,
			want: SourceLayout,
		},
		{
			name: "stringified nested layout",
			raw:  `{"contract_layout":"{\"pages\":[{\"sections\":[{\"type\":\"note\",\"content\":\"n\"}]}]}"}`,
			want: SourceLayout,
		},
		{
			name: "flat contract data",
			raw:  `{"contract_data":{"first_party_name":"Acme","second_party_name":"Bob","responsibilities":["one","two"]}}`,
			want: SourceContractData,
		},
		{
			name: "columns only",
			raw:  `{"first_party_name":"Acme","second_party_name_ar":"بوب"}`,
			want: SourceColumns,
		},
		{
			name: "empty template pages defer to top-level pages",
			raw:  `{"contract_template":{"pages":[{"sections":[]}]},"pages":[{"sections":[{"type":"text","content":"legacy clause"}]}]}`,
			want: SourcePages,
		},
		{
			name: "empty pages defer to contract_layout",
			raw:  `{"pages":[{"sections":[]}],"contract_layout":{"pages":[{"sections":[{"type":"note","content":"n"}]}]}}`,
			want: SourceLayout,
		},
		{
			name: "empty layouts defer to contract_data",
			raw:  `{"contract_template":{"pages":[{}]},"contract_layout":{"pages":[{"sections":[]}]},"contract_data":{"first_party_name":"Acme","second_party_name":"Bob"}}`,
			want: SourceContractData,
		},
		{
			name: "nothing usable",
			raw:  `{"pages":[],"contract_layout":42}`,
			want: SourcePlaceholder,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := Normalize(decode(tc.raw), Options{})
			if doc.Source != tc.want {
				t.Fatalf("source = %q, want %q", doc.Source, tc.want)
			}
			assertUnion(t, doc)
			if len(doc.Pages) == 0 {
				t.Fatalf("expected at least one page")
			}
		})
	}
}

func TestTemplateVersionRecorded(t *testing.T) {
	doc := Normalize(decode(`{"contract_template":{"version":"3","pages":[{"sections":[{"type":"text","content":"x"}]}]}}`), Options{})
	if doc.Version != "3" {
		t.Fatalf("version = %q", doc.Version)
	}
}

func TestEmptyNewestShapeKeepsLegacyContent(t *testing.T) {
	doc := Normalize(decode(`{"contract_template":{"pages":[{"sections":[]}]},"pages":[{"sections":[{"type":"text","content":"legacy clause"}]}]}`), Options{})
	if doc.Source != SourcePages || doc.SectionCount() != 1 {
		t.Fatalf("source=%q sections=%d", doc.Source, doc.SectionCount())
	}
	if got := doc.Pages[0].Sections[0].Content.EN; got != "legacy clause" {
		t.Fatalf("content = %q", got)
	}
}

func TestSectionAliasesAndBilingualFields(t *testing.T) {
	raw := `{"pages":[{"letterhead_url":"lh.png","sections":[
		{"type":"Heading","title":"Agreement","title_ar":"اتفاقية"},
		{"type":"photos","photos":["a.png",{"url":"b.png","caption":{"en":"B","ar":"ب"}}]},
		{"type":"signature-section","signatures":{"first_party_name":"Acme","stamp_url":"s.png"}},
		{"type":"mystery","content":"kept as text"},
		{"kind":"note","contentAr":"ملاحظة"},
		"bare string"
	]}]}`
	doc := Normalize(decode(raw), Options{})
	assertUnion(t, doc)
	secs := doc.Pages[0].Sections
	if len(secs) != 6 {
		t.Fatalf("expected 6 sections, got %d", len(secs))
	}
	if secs[0].Type != SectionTitle || secs[0].Title.EN != "Agreement" || secs[0].Title.AR != "اتفاقية" {
		t.Fatalf("title section: %#v", secs[0])
	}
	if secs[1].Type != SectionPhoto || len(secs[1].Photos) != 2 || secs[1].Photos[1].Caption.AR != "ب" {
		t.Fatalf("photo section: %#v", secs[1])
	}
	if secs[2].Type != SectionSignature || secs[2].Signature.FirstPartyName.EN != "Acme" || secs[2].Signature.StampURL != "s.png" {
		t.Fatalf("signature section: %#v", secs[2])
	}
	if secs[3].Type != SectionText || secs[3].Content.EN != "kept as text" {
		t.Fatalf("unknown type should become text: %#v", secs[3])
	}
	if secs[4].Type != SectionNote || secs[4].Content.AR != "ملاحظة" {
		t.Fatalf("note section: %#v", secs[4])
	}
	if secs[5].Type != SectionText || secs[5].Content.EN != "bare string" {
		t.Fatalf("bare string section: %#v", secs[5])
	}
	if doc.Pages[0].LetterheadURL != "lh.png" {
		t.Fatalf("letterhead lost")
	}
}

func TestSignatureFallsBackToColumns(t *testing.T) {
	raw := `{"first_party_name":"Acme","first_party_name_ar":"أكمي","signature_url":"sig.png","pages":[{"sections":[{"type":"signature"}]}]}`
	doc := Normalize(decode(raw), Options{})
	sig := doc.Pages[0].Sections[0].Signature
	if sig.FirstPartyName.AR != "أكمي" || sig.FirstPartySignatureURL != "sig.png" {
		t.Fatalf("signature defaults not applied: %#v", sig)
	}
}

func TestFlatDataSynthesis(t *testing.T) {
	raw := `{"reference_number":"CT-1","contract_data":{"first_party_name":"Acme","second_party_name":"Bob","start_date":"2024-01-02T00:00:00Z","end_date":"2024-06-30","notes":"n","photos":["p.png"]}}`
	doc := Normalize(decode(raw), Options{})
	types := []SectionType{}
	for _, s := range doc.Pages[0].Sections {
		types = append(types, s.Type)
	}
	want := []SectionType{SectionTitle, SectionText, SectionText, SectionNote, SectionPhoto, SectionSignature}
	if len(types) != len(want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("types = %v, want %v", types, want)
		}
	}
	if doc.Pages[0].Sections[0].Content.EN != "CT-1" {
		t.Fatalf("reference should come from the row columns")
	}
	if !strings.Contains(doc.Pages[0].Sections[2].Content.EN, "2024-01-02") {
		t.Fatalf("term should carry formatted start date: %q", doc.Pages[0].Sections[2].Content.EN)
	}
}

func TestMockMode(t *testing.T) {
	doc := Normalize(Record{}, Options{Mock: true})
	if doc.Source != SourceMock {
		t.Fatalf("expected mock source, got %q", doc.Source)
	}
	assertUnion(t, doc)
	seen := map[SectionType]bool{}
	for _, s := range doc.Pages[0].Sections {
		seen[s.Type] = true
	}
	for _, st := range SectionTypes {
		if !seen[st] {
			t.Fatalf("mock document should exercise %q", st)
		}
	}

	kept := Mock(Record{"first_party_name": "Real Co"})
	sig := kept.Pages[0].Sections[len(kept.Pages[0].Sections)-1].Signature
	if sig.FirstPartyName.EN != "Real Co" || sig.SecondPartyName.EN == "" {
		t.Fatalf("mock should keep known fields and fill the rest: %#v", sig)
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	inputs := []Record{
		nil,
		{},
		{"pages": "not json"},
		{"pages": []any{nil, 1, "x", []any{map[string]any{"type": 7}}}},
		{"contract_template": map[string]any{"pages": map[string]any{"oops": true}}},
		{"contract_layout": []any{map[string]any{"sections": []any{map[string]any{"photos": 5}}}}},
		{"contract_data": "garbage"},
		{"pages": []any{map[string]any{"sections": []any{map[string]any{"type": "signature", "signatures": []any{1}}}}}},
	}
	for i, in := range inputs {
		for _, mock := range []bool{false, true} {
			doc := Normalize(in, Options{Mock: mock})
			assertUnion(t, doc)
			if len(doc.Pages) == 0 || doc.SectionCount() == 0 {
				t.Fatalf("input %d mock=%v produced an empty document", i, mock)
			}
		}
	}
}

func TestParsePagesStrict(t *testing.T) {
	var ok any
	_ = json.Unmarshal([]byte(`[{"sections":[{"type":"title","title":"x"},{"type":"photo","url":"a.png"}]}]`), &ok)
	pages, err := ParsePages(ok)
	if err != nil || len(pages) != 1 {
		t.Fatalf("expected valid pages, got %v", err)
	}

	var bad any
	_ = json.Unmarshal([]byte(`[{"sections":[{"type":"video"}]}]`), &bad)
	if _, err := ParsePages(bad); err == nil || !strings.Contains(err.Error(), "video") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if _, err := ParsePages([]any{}); err == nil {
		t.Fatalf("expected error for empty pages")
	}
	if _, err := ParsePages([]any{map[string]any{"sections": []any{}}}); err == nil {
		t.Fatalf("expected error for page without sections")
	}
}

func TestFromContract(t *testing.T) {
	c := models.Contract{
		ReferenceNumber:   "CT-9",
		FirstPartyNameEN:  "Acme",
		SecondPartyNameAR: "بوب",
		StartDate:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Layout:            models.JSONB(`[{"sections":[{"type":"title","title":"From layout"}]}]`),
	}
	doc := Normalize(FromContract(c), Options{})
	if doc.Source != SourcePages || doc.Pages[0].Sections[0].Title.EN != "From layout" {
		t.Fatalf("array layout should be read as pages: %#v", doc)
	}

	c.Layout = nil
	doc = Normalize(FromContract(c), Options{})
	if doc.Source != SourceColumns {
		t.Fatalf("expected columns source, got %q", doc.Source)
	}
	if !strings.Contains(doc.Pages[0].Sections[2].Content.EN, "2024-03-01") {
		t.Fatalf("start date not formatted: %#v", doc.Pages[0].Sections[2])
	}
}
