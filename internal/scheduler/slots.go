package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// SlotGrid is the weekly coordinate space shared by every division. Every
// day uses the same slot template.
type SlotGrid struct {
	Days  []string
	Slots []models.TimeSlot
}

// SlotsPerDay returns the number of cells in a day, breaks included.
func (g SlotGrid) SlotsPerDay() int { return len(g.Slots) }

// Cells returns the number of cells in the week.
func (g SlotGrid) Cells() int { return len(g.Days) * len(g.Slots) }

// TeachingSlotsPerDay counts the non-break cells of a day.
func (g SlotGrid) TeachingSlotsPerDay() int {
	count := 0
	for _, slot := range g.Slots {
		if slot.Kind != models.SlotBreak {
			count++
		}
	}
	return count
}

// IsBreak reports whether the slot index is a break on every day.
func (g SlotGrid) IsBreak(slot int) bool {
	return g.Slots[slot].Kind == models.SlotBreak
}

// ForDay returns the day's slots with the day name filled in.
func (g SlotGrid) ForDay(day int) []models.TimeSlot {
	out := make([]models.TimeSlot, len(g.Slots))
	for i, slot := range g.Slots {
		slot.Day = g.Days[day]
		out[i] = slot
	}
	return out
}

// BuildSlots partitions the configured daily window into lecture and break
// slots. Breaks are spread at even fractional offsets between lectures and
// never open or close the day. The result depends only on cfg.
func BuildSlots(cfg models.ScheduleConfig) (SlotGrid, error) {
	cfg = cfg.WithDefaults()

	switch {
	case cfg.WorkingDays < 1 || cfg.WorkingDays > len(models.Weekdays):
		return SlotGrid{}, invalidConfig("working_days must be between 1 and 7")
	case cfg.BreakCount < 0 || cfg.BreakCount > 5:
		return SlotGrid{}, invalidConfig("break_count must be between 0 and 5")
	case cfg.BreakDuration < 15 || cfg.BreakDuration > 120:
		return SlotGrid{}, invalidConfig("break_duration must be between 15 and 120 minutes")
	}

	start, err := parseClock(cfg.StartTime)
	if err != nil {
		return SlotGrid{}, invalidConfig("start_time must use HH:MM")
	}
	end, err := parseClock(cfg.EndTime)
	if err != nil {
		return SlotGrid{}, invalidConfig("end_time must use HH:MM")
	}
	if start >= end {
		return SlotGrid{}, invalidConfig("start_time must be before end_time")
	}

	window := end - start
	lectures := (window - cfg.BreakCount*cfg.BreakDuration) / cfg.LectureDuration
	if lectures < cfg.BreakCount+1 {
		return SlotGrid{}, invalidConfig(fmt.Sprintf("window of %d minutes cannot hold %d breaks between lectures", window, cfg.BreakCount))
	}

	breakAfter := breakPositions(lectures, cfg.BreakCount)

	slots := make([]models.TimeSlot, 0, lectures+cfg.BreakCount)
	cursor := start
	next := 0
	for lecture := 1; lecture <= lectures; lecture++ {
		slots = append(slots, models.TimeSlot{
			Index: len(slots),
			Start: formatClock(cursor),
			End:   formatClock(cursor + cfg.LectureDuration),
			Kind:  models.SlotLecture,
		})
		cursor += cfg.LectureDuration

		if next < len(breakAfter) && breakAfter[next] == lecture {
			slots = append(slots, models.TimeSlot{
				Index: len(slots),
				Start: formatClock(cursor),
				End:   formatClock(cursor + cfg.BreakDuration),
				Kind:  models.SlotBreak,
			})
			cursor += cfg.BreakDuration
			next++
		}
	}

	days := make([]string, cfg.WorkingDays)
	copy(days, models.Weekdays[:cfg.WorkingDays])

	return SlotGrid{Days: days, Slots: slots}, nil
}

// breakPositions returns, for each break, the lecture it follows. Break k
// sits after lecture round(k*n/(count+1)), kept strictly inside the day and
// apart from the previous break.
func breakPositions(lectures, count int) []int {
	positions := make([]int, count)
	prev := 0
	for k := 1; k <= count; k++ {
		num := k * lectures
		den := count + 1
		pos := (2*num + den) / (2 * den)

		lo := prev + 1
		hi := lectures - 1 - (count - k)
		if pos < lo {
			pos = lo
		}
		if pos > hi {
			pos = hi
		}
		positions[k-1] = pos
		prev = pos
	}
	return positions
}

func parseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{"15:04", "15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid clock value %q", raw)
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func invalidConfig(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidConfig, message)
}
