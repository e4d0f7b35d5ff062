package models

import (
	"encoding/json"
	"fmt"
)

// SlotKind tags a grid cell. The JSON literals are read by the frontend.
type SlotKind int

const (
	SlotFree SlotKind = iota
	SlotLecture
	SlotLab
	SlotBreak
)

var slotKindNames = map[SlotKind]string{
	SlotFree:    "free",
	SlotLecture: "lecture",
	SlotLab:     "lab",
	SlotBreak:   "break",
}

func (k SlotKind) String() string {
	if name, ok := slotKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SlotKind(%d)", int(k))
}

// MarshalJSON encodes the kind as its literal.
func (k SlotKind) MarshalJSON() ([]byte, error) {
	name, ok := slotKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown slot kind %d", int(k))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a kind literal.
func (k *SlotKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for kind, name := range slotKindNames {
		if name == raw {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown slot kind %q", raw)
}

// TimeSlot is one cell of the shared weekly grid.
type TimeSlot struct {
	Day   string   `json:"day"`
	Index int      `json:"index"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Kind  SlotKind `json:"type"`
}

// Assignment places a subject and its teachers on a division's grid cell.
type Assignment struct {
	DivisionID string   `json:"division_id"`
	Day        string   `json:"day"`
	Slot       int      `json:"slot"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Kind       SlotKind `json:"type"`
	SubjectID  string   `json:"subject_id,omitempty"`
	TeacherIDs []string `json:"teacher_ids,omitempty"`
}

// DaySchedule holds one division's cells for a day in slot order.
type DaySchedule struct {
	Day   string       `json:"day"`
	Cells []Assignment `json:"cells"`
}

// DivisionSchedule is the week of one division.
type DivisionSchedule struct {
	DivisionID string        `json:"division_id"`
	Days       []DaySchedule `json:"days"`
}

// Timetable maps division IDs onto their weekly schedules.
type Timetable map[string]DivisionSchedule

// Termination reasons reported by the optimizer.
const (
	TerminationThreshold      = "threshold"
	TerminationMaxGenerations = "max_generations"
	TerminationStagnation     = "stagnation"
	TerminationTimeBudget     = "time_budget"
	TerminationCanceled       = "canceled"
	TerminationAborted        = "aborted"
)

// FitnessReport summarises how good a generated timetable is.
type FitnessReport struct {
	HardConflicts   int            `json:"hard_conflicts"`
	SoftScore       int64          `json:"soft_score"`
	Total           int64          `json:"total"`
	Generations     int            `json:"generations"`
	Termination     string         `json:"termination"`
	PartialSolution bool           `json:"partial_solution"`
	Status          string         `json:"status"`
	Seed            int64          `json:"seed"`
	DurationMs      int64          `json:"duration_ms"`
	Breakdown       map[string]int `json:"breakdown"`
	History         []int64        `json:"history,omitempty"`
}
