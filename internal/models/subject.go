package models

import "github.com/lib/pq"

// SubjectCategory classifies a subject within the curriculum.
type SubjectCategory string

const (
	SubjectCategoryMajor        SubjectCategory = "Major"
	SubjectCategoryMinor        SubjectCategory = "Minor"
	SubjectCategoryOpenElective SubjectCategory = "OpenElective"
	SubjectCategoryCOI          SubjectCategory = "COI"
	SubjectCategoryUHV          SubjectCategory = "UHV"
)

// Valid reports whether the category is one of the known values.
func (c SubjectCategory) Valid() bool {
	switch c {
	case SubjectCategoryMajor, SubjectCategoryMinor, SubjectCategoryOpenElective, SubjectCategoryCOI, SubjectCategoryUHV:
		return true
	}
	return false
}

// Priority ranks categories for placement, lower first: Major, then Minor,
// then every other category.
func (c SubjectCategory) Priority() int {
	switch c {
	case SubjectCategoryMajor:
		return 0
	case SubjectCategoryMinor:
		return 1
	}
	return 2
}

// Subject represents a course taught each week.
// DivisionIDs restricts the subject to some divisions; empty means all.
type Subject struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name" validate:"required"`
	Category         SubjectCategory `db:"category" json:"category" validate:"required,oneof=Major Minor OpenElective COI UHV"`
	IsLab            bool            `db:"is_lab" json:"is_lab"`
	WeeklyHours      int             `db:"weekly_hours" json:"weekly_hours" validate:"min=1,max=40"`
	TeachersRequired int             `db:"teachers_required" json:"teachers_required" validate:"min=1,max=10"`
	DivisionIDs      pq.StringArray  `db:"division_ids" json:"division_ids,omitempty"`
}

// AppliesTo reports whether the subject is taught to the given division.
func (s Subject) AppliesTo(divisionID string) bool {
	if len(s.DivisionIDs) == 0 {
		return true
	}
	for _, id := range s.DivisionIDs {
		if id == divisionID {
			return true
		}
	}
	return false
}

// SubjectTeacher maps a subject onto a teacher allowed to teach it.
type SubjectTeacher struct {
	SubjectID string `db:"subject_id" json:"subject_id" validate:"required"`
	TeacherID string `db:"teacher_id" json:"teacher_id" validate:"required"`
}
