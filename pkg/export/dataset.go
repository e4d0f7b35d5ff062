package export

// Sheet is one titled table of a document, such as a division's week.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Document groups sheets rendered into a single file.
type Document struct {
	Title  string
	Sheets []Sheet
}

func (d Document) validate(kind string) error {
	if len(d.Sheets) == 0 {
		return errNoSheets(kind)
	}
	for _, sheet := range d.Sheets {
		if len(sheet.Headers) == 0 {
			return errNoHeaders(kind, sheet.Name)
		}
	}
	return nil
}
