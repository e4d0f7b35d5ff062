package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

type timetableSource interface {
	Result(ctx context.Context, id string) (*dto.TimetableResponse, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportResult is a rendered download.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders run timetables into downloadable documents, one
// sheet or page per division.
type ExportService struct {
	runs      timetableSource
	renderers map[string]documentRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV, PDF and XLSX renderers.
func NewExportService(runs timetableSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		runs: runs,
		renderers: map[string]documentRenderer{
			ExportFormatCSV:  export.NewCSVExporter(),
			ExportFormatPDF:  export.NewPDFExporter(),
			ExportFormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export renders the timetable of run id in format. An empty format means CSV.
func (s *ExportService) Export(ctx context.Context, id, format string) (*ExportResult, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	timetable, err := s.runs.Result(ctx, id)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(BuildTimetableDocument(timetable))
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("run_id", id), zap.String("format", format), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render timetable export")
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("timetable_%s_%s.%s", shortID(id), s.now().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// BuildTimetableDocument lays out each division as a grid with one row per
// slot and one column per day.
func BuildTimetableDocument(resp *dto.TimetableResponse) export.Document {
	doc := export.Document{Title: "Timetable"}
	if resp == nil {
		return doc
	}

	divisions := resp.Divisions
	if len(divisions) == 0 {
		divisions = sortedKeys(resp.Timetable)
	}

	for _, name := range divisions {
		division, ok := resp.Timetable[name]
		if !ok {
			continue
		}
		days := resp.Days
		if len(days) == 0 {
			days = weekdayOrder(division.Schedule)
		}

		sheet := export.Sheet{Name: name, Headers: append([]string{"Time"}, days...)}
		slots := 0
		for _, day := range days {
			if n := len(division.Schedule[day]); n > slots {
				slots = n
			}
		}
		for slot := 0; slot < slots; slot++ {
			row := make([]string, 0, len(days)+1)
			row = append(row, "")
			for _, day := range days {
				cells := division.Schedule[day]
				if slot >= len(cells) {
					row = append(row, "")
					continue
				}
				if row[0] == "" {
					row[0] = cells[slot].Start + "-" + cells[slot].End
				}
				row = append(row, cellLabel(cells[slot]))
			}
			sheet.Rows = append(sheet.Rows, row)
		}
		doc.Sheets = append(doc.Sheets, sheet)
	}
	return doc
}

func cellLabel(cell dto.TimetableCell) string {
	switch cell.Type {
	case models.SlotBreak:
		return "Break"
	case models.SlotFree:
		return ""
	}
	label := cell.Subject
	if cell.Type == models.SlotLab {
		label += " [Lab]"
	}
	if cell.Teacher != "" {
		label += " (" + cell.Teacher + ")"
	}
	return label
}

func weekdayOrder[V any](schedule map[string]V) []string {
	days := make([]string, 0, len(schedule))
	for _, day := range models.Weekdays {
		if _, ok := schedule[day]; ok {
			days = append(days, day)
		}
	}
	return days
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
