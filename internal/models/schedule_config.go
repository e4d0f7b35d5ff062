package models

const (
	DefaultLectureDuration = 60
	DefaultLabBlockSlots   = 2
)

// Weekdays lists day names in grid order; a config with N working days
// uses the first N entries.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ScheduleConfig describes the daily teaching window shared by every division.
type ScheduleConfig struct {
	ID              string `db:"id" json:"id,omitempty"`
	WorkingDays     int    `db:"working_days" json:"working_days" validate:"min=1,max=7"`
	StartTime       string `db:"start_time" json:"start_time" validate:"required"`
	EndTime         string `db:"end_time" json:"end_time" validate:"required"`
	BreakCount      int    `db:"break_count" json:"break_count" validate:"min=0,max=5"`
	BreakDuration   int    `db:"break_duration" json:"break_duration" validate:"min=15,max=120"`
	LectureDuration int    `db:"lecture_duration" json:"lecture_duration,omitempty" validate:"omitempty,min=15,max=240"`
	LabBlockSlots   int    `db:"lab_block_slots" json:"lab_block_slots,omitempty" validate:"omitempty,min=1,max=6"`
}

// WithDefaults fills optional durations.
func (c ScheduleConfig) WithDefaults() ScheduleConfig {
	if c.LectureDuration <= 0 {
		c.LectureDuration = DefaultLectureDuration
	}
	if c.LabBlockSlots <= 0 {
		c.LabBlockSlots = DefaultLabBlockSlots
	}
	return c
}
