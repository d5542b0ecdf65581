package layout

import "strings"

// flat is the field set shared by the contract_data shape and the plain
// contract columns.
type flat struct {
	title            Text
	reference        string
	firstParty       Text
	secondParty      Text
	startDate        string
	endDate          string
	responsibilities Text
	notes            Text
	photos           []Photo
	signatureURL     string
	secondSigURL     string
	stampURL         string
	letterheadURL    string
}

func readFlat(m map[string]any) flat {
	return flat{
		title:            bilingual(m, "title", "contract_title"),
		reference:        first(m, "reference_number", "referenceNumber", "ref"),
		firstParty:       bilingual(m, "first_party_name", "firstPartyName", "first_party"),
		secondParty:      bilingual(m, "second_party_name", "secondPartyName", "second_party"),
		startDate:        formatDate(first(m, "start_date", "startDate", "from")),
		endDate:          formatDate(first(m, "end_date", "endDate", "to")),
		responsibilities: bilingual(m, "responsibilities", "terms", "obligations"),
		notes:            bilingual(m, "notes", "note"),
		photos:           readPhotos(pick(m, "photos", "images")),
		signatureURL:     first(m, "signature_url", "signatureUrl", "first_party_signature"),
		secondSigURL:     first(m, "second_party_signature", "second_party_signature_url"),
		stampURL:         first(m, "stamp_url", "stampUrl", "stamp"),
		letterheadURL:    first(m, "letterhead_url", "letterheadUrl"),
	}
}

// pick copies only the named keys so readPhotos does not mistake other
// URL fields for photos.
func pick(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

// merge fills empty fields of f from other.
func (f flat) merge(other flat) flat {
	f.title = orText(f.title, other.title)
	f.reference = orString(f.reference, other.reference)
	f.firstParty = orText(f.firstParty, other.firstParty)
	f.secondParty = orText(f.secondParty, other.secondParty)
	f.startDate = orString(f.startDate, other.startDate)
	f.endDate = orString(f.endDate, other.endDate)
	f.responsibilities = orText(f.responsibilities, other.responsibilities)
	f.notes = orText(f.notes, other.notes)
	if len(f.photos) == 0 {
		f.photos = other.photos
	}
	f.signatureURL = orString(f.signatureURL, other.signatureURL)
	f.secondSigURL = orString(f.secondSigURL, other.secondSigURL)
	f.stampURL = orString(f.stampURL, other.stampURL)
	f.letterheadURL = orString(f.letterheadURL, other.letterheadURL)
	return f
}

func (f flat) meaningful() bool {
	return !f.firstParty.Empty() || !f.secondParty.Empty() || !f.responsibilities.Empty()
}

var (
	defaultTitle = Text{EN: "Contract Agreement", AR: "اتفاقية عقد"}
	partiesTitle = Text{EN: "Parties", AR: "الأطراف"}
	termTitle    = Text{EN: "Term", AR: "المدة"}
	dutiesTitle  = Text{EN: "Responsibilities", AR: "المسؤوليات"}
	notesTitle   = Text{EN: "Notes", AR: "ملاحظات"}
	photosTitle  = Text{EN: "Photos", AR: "الصور"}
	signTitle    = Text{EN: "Signatures", AR: "التوقيعات"}
)

func (f flat) page() Page {
	sections := []Section{{
		Type:    SectionTitle,
		Title:   orText(f.title, defaultTitle),
		Content: Text{EN: f.reference, AR: f.reference},
	}}
	sections = append(sections, Section{
		Type:  SectionText,
		Title: partiesTitle,
		Content: Text{
			EN: "This agreement is made between " + orString(f.firstParty.EN, f.firstParty.AR) + " (First Party) and " + orString(f.secondParty.EN, f.secondParty.AR) + " (Second Party).",
			AR: "أبرم هذا العقد بين " + orString(f.firstParty.AR, f.firstParty.EN) + " (الطرف الأول) و " + orString(f.secondParty.AR, f.secondParty.EN) + " (الطرف الثاني).",
		},
	})
	if f.startDate != "" || f.endDate != "" {
		sections = append(sections, Section{
			Type:  SectionText,
			Title: termTitle,
			Content: Text{
				EN: strings.TrimSpace("From " + f.startDate + " to " + f.endDate),
				AR: strings.TrimSpace("من " + f.startDate + " إلى " + f.endDate),
			},
		})
	}
	if !f.responsibilities.Empty() {
		sections = append(sections, Section{Type: SectionText, Title: dutiesTitle, Content: f.responsibilities})
	}
	if !f.notes.Empty() {
		sections = append(sections, Section{Type: SectionNote, Title: notesTitle, Content: f.notes})
	}
	if len(f.photos) > 0 {
		sections = append(sections, Section{Type: SectionPhoto, Title: photosTitle, Photos: f.photos})
	}
	sections = append(sections, Section{
		Type:  SectionSignature,
		Title: signTitle,
		Signature: &Signature{
			FirstPartyName:          f.firstParty,
			SecondPartyName:         f.secondParty,
			FirstPartySignatureURL:  f.signatureURL,
			SecondPartySignatureURL: f.secondSigURL,
			StampURL:                f.stampURL,
		},
	})
	return Page{LetterheadURL: f.letterheadURL, Sections: sections}
}

// placeholder is the minimal renderable document used when nothing usable
// is stored and mock data is off.
func placeholder(rec Record) Document {
	f := readFlat(rec)
	return Document{
		Source: SourcePlaceholder,
		Pages: []Page{{
			LetterheadURL: f.letterheadURL,
			Sections: []Section{
				{Type: SectionTitle, Title: orText(f.title, defaultTitle), Content: Text{EN: f.reference, AR: f.reference}},
				{Type: SectionSignature, Title: signTitle, Signature: &Signature{
					FirstPartyName:         f.firstParty,
					SecondPartyName:        f.secondParty,
					FirstPartySignatureURL: f.signatureURL,
					StampURL:               f.stampURL,
				}},
			},
		}},
	}
}
