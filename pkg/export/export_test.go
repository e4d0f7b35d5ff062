package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDocument() Document {
	return Document{
		Title: "Timetable",
		Sheets: []Sheet{
			{
				Name:    "X-A",
				Headers: []string{"Time", "Monday", "Tuesday"},
				Rows: [][]string{
					{"09:00-10:00", "Math (Ana)", "Physics (Budi)"},
					{"10:00-10:15", "Break", "Break"},
				},
			},
			{
				Name:    "X-A",
				Headers: []string{"Time", "Monday", "Tuesday"},
				Rows:    [][]string{{"09:00-10:00", "English (Ana)", ""}},
			},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDocument())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Sheet,Time,Monday,Tuesday", lines[0])
	assert.Equal(t, "X-A,09:00-10:00,Math (Ana),Physics (Budi)", lines[1])
	assert.Equal(t, "X-A,09:00-10:00,English (Ana),", lines[3])
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDocument())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	assert.Equal(t, []string{"X-A", "X-A (2)"}, f.GetSheetList())

	rows, err := f.GetRows("X-A")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Time", "Monday", "Tuesday"}, rows[0])
	assert.Equal(t, "Math (Ana)", rows[1][1])
}

func TestExportersRejectEmptyDocuments(t *testing.T) {
	_, err := NewCSVExporter().Render(Document{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Document{Sheets: []Sheet{{Name: "empty"}}})
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(Document{})
	assert.Error(t, err)
}

func TestSheetNameSanitises(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "A-B", sheetName("A/B", 0, used))
	assert.Equal(t, "Sheet2", sheetName("", 1, used))
	long := strings.Repeat("x", 40)
	assert.Len(t, sheetName(long, 2, used), 31)
	assert.Len(t, sheetName(long, 3, used), 31)
}
