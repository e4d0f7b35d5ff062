package models

// Division represents a student cohort that needs its own weekly schedule.
type Division struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name" validate:"required"`
}
