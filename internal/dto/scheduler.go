package dto

import "github.com/noah-isme/timetable-api/internal/models"

// GenerateOptions tunes the optimizer for one request. Zero values fall back
// to the server defaults.
type GenerateOptions struct {
	Seed            *int64  `json:"seed,omitempty"`
	PopulationSize  int     `json:"population_size,omitempty" validate:"omitempty,min=2,max=2000"`
	MaxGenerations  int     `json:"max_generations,omitempty" validate:"omitempty,min=1,max=100000"`
	EliteCount      int     `json:"elite_count,omitempty" validate:"omitempty,min=1"`
	TournamentSize  int     `json:"tournament_size,omitempty" validate:"omitempty,min=1,max=64"`
	CrossoverRate   float64 `json:"crossover_rate,omitempty" validate:"omitempty,gt=0,lte=1"`
	MutationRate    float64 `json:"mutation_rate,omitempty" validate:"omitempty,gt=0,lte=1"`
	StagnationLimit int     `json:"stagnation_limit,omitempty" validate:"omitempty,min=1"`
	TimeBudgetMs    int     `json:"time_budget_ms,omitempty" validate:"omitempty,min=1,max=600000"`
	TargetSoft      int64   `json:"target_soft,omitempty" validate:"omitempty,min=0"`
	Workers         int     `json:"workers,omitempty" validate:"omitempty,min=1,max=256"`
}

// GenerateRequest carries the inputs of one generation. A request without
// divisions, teachers and subjects is served from the stored snapshot, and a
// missing config falls back to the stored one.
type GenerateRequest struct {
	Divisions       []models.Division       `json:"divisions" validate:"omitempty,dive"`
	Teachers        []models.Teacher        `json:"teachers" validate:"omitempty,dive"`
	Subjects        []models.Subject        `json:"subjects" validate:"omitempty,dive"`
	SubjectTeachers []models.SubjectTeacher `json:"subject_teachers" validate:"omitempty,dive"`
	Config          *models.ScheduleConfig  `json:"config" validate:"-"`
	Options         GenerateOptions         `json:"options"`
}

// HasInputs reports whether the caller supplied any scheduling entities.
func (r GenerateRequest) HasInputs() bool {
	return len(r.Divisions) > 0 || len(r.Teachers) > 0 || len(r.Subjects) > 0
}

// SlotCell is one preview slot.
type SlotCell struct {
	Start string          `json:"start"`
	End   string          `json:"end"`
	Type  models.SlotKind `json:"type"`
}

// SlotsResponse is the slot preview keyed by day name.
type SlotsResponse struct {
	WorkingDays int                   `json:"working_days"`
	Days        []string              `json:"days"`
	Timetable   map[string][]SlotCell `json:"timetable"`
}

// TimetableCell is one rendered cell. Teacher joins the names of every
// assigned teacher.
type TimetableCell struct {
	Type       models.SlotKind `json:"type"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Subject    string          `json:"subject,omitempty"`
	Teacher    string          `json:"teacher,omitempty"`
	SubjectID  string          `json:"subject_id,omitempty"`
	TeacherIDs []string        `json:"teacher_ids,omitempty"`
}

// DivisionTimetable is the rendered week of one division.
type DivisionTimetable struct {
	ID       string                     `json:"id"`
	Schedule map[string][]TimetableCell `json:"schedule"`
}

// TimetableResponse is the generated timetable keyed by division name.
// Days and Divisions keep grid and input order for consumers that iterate.
type TimetableResponse struct {
	Timetable map[string]DivisionTimetable `json:"timetable"`
	Days      []string                     `json:"days"`
	Divisions []string                     `json:"divisions"`
	Report    models.FitnessReport         `json:"report"`
}

// RunAccepted is returned when an asynchronous run is queued.
type RunAccepted struct {
	RunID  string           `json:"run_id"`
	Status models.RunStatus `json:"status"`
}

// RunResponse is the state of an asynchronous run, with its result once it
// has succeeded.
type RunResponse struct {
	models.GenerationRun
	Result *TimetableResponse `json:"result,omitempty"`
}

// RunEvent is pushed to stream subscribers whenever a run changes.
type RunEvent struct {
	RunID    string             `json:"run_id"`
	Status   models.RunStatus   `json:"status"`
	Progress models.RunProgress `json:"progress"`
	Error    string             `json:"error,omitempty"`
}

// ExportQuery selects the download format of a finished run.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}
