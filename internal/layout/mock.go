package layout

var mockFields = flat{
	title:       Text{EN: "Service Agreement (Preview)", AR: "اتفاقية خدمات (معاينة)"},
	reference:   "CT-PREVIEW",
	firstParty:  Text{EN: "First Party Company", AR: "شركة الطرف الأول"},
	secondParty: Text{EN: "Second Party Promoter", AR: "مروج الطرف الثاني"},
	startDate:   "2024-01-01",
	endDate:     "2024-12-31",
	responsibilities: Text{
		EN: "The second party shall promote the first party's products at the agreed locations.\nThe first party shall provide all promotional materials.",
		AR: "يلتزم الطرف الثاني بالترويج لمنتجات الطرف الأول في المواقع المتفق عليها.\nيلتزم الطرف الأول بتوفير جميع المواد الترويجية.",
	},
	notes: Text{EN: "This is preview data and not a binding contract.", AR: "هذه بيانات معاينة وليست عقدا ملزما."},
}

// Mock synthesizes a complete preview document, keeping whatever the
// record does provide and filling the rest with placeholder content.
func Mock(rec Record) Document {
	f := mockFields
	if rec != nil {
		f = readFlat(rec).merge(mockFields)
	}
	page := f.page()
	if len(f.photos) == 0 {
		sig := page.Sections[len(page.Sections)-1]
		page.Sections = append(page.Sections[:len(page.Sections)-1],
			Section{Type: SectionPhoto, Title: photosTitle, Photos: []Photo{}},
			sig,
		)
	}
	return finish(Document{Pages: []Page{page}, Source: SourceMock})
}
