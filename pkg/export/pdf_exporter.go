package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders each sheet as a landscape table page.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return "pdf" }

// Render creates a PDF document with one page per sheet.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate("pdf"); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, sheet := range doc.Sheets {
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 14)
		heading := sheet.Name
		if doc.Title != "" {
			heading = fmt.Sprintf("%s - %s", doc.Title, sheet.Name)
		}
		pdf.CellFormat(0, 10, tr(heading), "", 1, "C", false, 0, "")
		pdf.Ln(3)

		colWidth := 277.0 / float64(len(sheet.Headers))
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 228, 242)
		for _, header := range sheet.Headers {
			pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range sheet.Rows {
			for i := range sheet.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(colWidth, 7, tr(value), "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
