package models

// Teacher represents an instructor that can be assigned to subjects.
// MaxWeeklyLoad caps the teaching slots per week; zero defers to the
// scheduler-wide limit.
type Teacher struct {
	ID            string `db:"id" json:"id"`
	Name          string `db:"name" json:"name" validate:"required"`
	MaxWeeklyLoad int    `db:"max_weekly_load" json:"max_weekly_load" validate:"omitempty,min=0"`
}
