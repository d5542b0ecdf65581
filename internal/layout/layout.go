// Package layout converts the historical JSON shapes a contract may be
// stored in into one renderable document of pages and sections.
package layout

type SectionType string

const (
	SectionTitle     SectionType = "title"
	SectionNote      SectionType = "note"
	SectionText      SectionType = "text"
	SectionPhoto     SectionType = "photo_section"
	SectionSignature SectionType = "signature"
)

// SectionTypes is the closed set a normalized document may contain.
var SectionTypes = []SectionType{SectionTitle, SectionNote, SectionText, SectionPhoto, SectionSignature}

func (t SectionType) Valid() bool {
	for _, s := range SectionTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Source names the stored shape a document was built from.
type Source string

const (
	SourceTemplate     Source = "contract_template"
	SourcePages        Source = "pages"
	SourceLayout       Source = "contract_layout"
	SourceContractData Source = "contract_data"
	SourceColumns      Source = "columns"
	SourceMock         Source = "mock"
	SourcePlaceholder  Source = "placeholder"
)

// Text holds the English and Arabic versions of one string.
type Text struct {
	EN string `json:"en"`
	AR string `json:"ar"`
}

func (t Text) Empty() bool { return t.EN == "" && t.AR == "" }

type Photo struct {
	URL     string `json:"url"`
	Caption Text   `json:"caption"`
}

type Signature struct {
	FirstPartyName          Text   `json:"first_party_name"`
	SecondPartyName         Text   `json:"second_party_name"`
	FirstPartySignatureURL  string `json:"first_party_signature_url"`
	SecondPartySignatureURL string `json:"second_party_signature_url"`
	StampURL                string `json:"stamp_url"`
}

// Section is a tagged union keyed by Type. Photos is set only for
// photo_section and Signature only for signature.
type Section struct {
	Type      SectionType `json:"type"`
	Title     Text        `json:"title"`
	Content   Text        `json:"content"`
	Photos    []Photo     `json:"photos,omitempty"`
	Signature *Signature  `json:"signature,omitempty"`
}

type Page struct {
	LetterheadURL string    `json:"letterhead_url"`
	Sections      []Section `json:"sections"`
}

type Document struct {
	Pages   []Page `json:"pages"`
	Source  Source `json:"source"`
	Version string `json:"version,omitempty"`
}

// SectionCount returns the number of sections across all pages.
func (d Document) SectionCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Sections)
	}
	return n
}

// Options controls placeholder synthesis.
type Options struct {
	// Mock fills missing content with placeholder data, for preview and
	// development environments.
	Mock bool
}
