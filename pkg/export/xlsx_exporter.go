package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders each sheet into its own worksheet.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes the document as a workbook. Sheet names are truncated to
// the 31 characters Excel allows.
func (e *XLSXExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx header style: %w", err)
	}

	used := map[string]bool{}
	for i, sheet := range doc.Sheets {
		name := sheetName(sheet.Name, i, used)
		idx, err := f.NewSheet(name)
		if err != nil {
			return nil, fmt.Errorf("xlsx sheet %q: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}

		if err := writeRow(f, name, 1, sheet.Headers); err != nil {
			return nil, err
		}
		last, _ := excelize.ColumnNumberToName(len(sheet.Headers))
		if err := f.SetCellStyle(name, "A1", fmt.Sprintf("%s1", last), headerStyle); err != nil {
			return nil, fmt.Errorf("xlsx style: %w", err)
		}
		if err := f.SetColWidth(name, "A", last, 20); err != nil {
			return nil, fmt.Errorf("xlsx column width: %w", err)
		}
		for r, row := range sheet.Rows {
			if err := writeRow(f, name, r+2, row); err != nil {
				return nil, err
			}
		}
	}
	if !used[defaultSheet] {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, fmt.Errorf("xlsx drop default sheet: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsx cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, start, &cells); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}

func sheetName(raw string, index int, used map[string]bool) string {
	base := raw
	if base == "" {
		base = fmt.Sprintf("Sheet%d", index+1)
	}
	base = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")").Replace(base)
	if len(base) > 31 {
		base = base[:31]
	}

	name := base
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		name = trimmed + suffix
	}
	used[name] = true
	return name
}
