package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

const (
	listDivisionsQuery       = "SELECT id, name FROM divisions ORDER BY name, id"
	listTeachersQuery        = "SELECT id, name, COALESCE(max_weekly_load, 0) AS max_weekly_load FROM teachers ORDER BY name, id"
	listSubjectsQuery        = "SELECT id, name, category, is_lab, weekly_hours, teachers_required, COALESCE(division_ids, '{}') AS division_ids FROM subjects ORDER BY name, id"
	listSubjectTeachersQuery = "SELECT subject_id, teacher_id FROM subject_teachers ORDER BY subject_id, teacher_id"
	latestConfigQuery        = "SELECT id, working_days, start_time, end_time, break_count, break_duration, COALESCE(lecture_duration, 0) AS lecture_duration, COALESCE(lab_block_slots, 0) AS lab_block_slots FROM timetable_configs ORDER BY created_at DESC LIMIT 1"
)

// QueryObserver records query latency.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// InputRepository reads the scheduling inputs maintained by the planner UI.
type InputRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewInputRepository constructs an InputRepository. observer may be nil.
func NewInputRepository(db *sqlx.DB, observer QueryObserver) *InputRepository {
	return &InputRepository{db: db, observer: observer}
}

// ListDivisions returns every division.
func (r *InputRepository) ListDivisions(ctx context.Context) ([]models.Division, error) {
	var divisions []models.Division
	if err := r.selectTimed(ctx, "list_divisions", &divisions, listDivisionsQuery); err != nil {
		return nil, fmt.Errorf("list divisions: %w", err)
	}
	return divisions, nil
}

// ListTeachers returns every teacher.
func (r *InputRepository) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.selectTimed(ctx, "list_teachers", &teachers, listTeachersQuery); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListSubjects returns every subject with its division restriction.
func (r *InputRepository) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.selectTimed(ctx, "list_subjects", &subjects, listSubjectsQuery); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListSubjectTeachers returns the subject to teacher mapping.
func (r *InputRepository) ListSubjectTeachers(ctx context.Context) ([]models.SubjectTeacher, error) {
	var links []models.SubjectTeacher
	if err := r.selectTimed(ctx, "list_subject_teachers", &links, listSubjectTeachersQuery); err != nil {
		return nil, fmt.Errorf("list subject teachers: %w", err)
	}
	return links, nil
}

// LatestConfig returns the most recently saved schedule config.
func (r *InputRepository) LatestConfig(ctx context.Context) (*models.ScheduleConfig, error) {
	start := time.Now()
	var cfg models.ScheduleConfig
	err := r.db.GetContext(ctx, &cfg, latestConfigQuery)
	r.observe("latest_config", start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule config not found")
		}
		return nil, fmt.Errorf("latest config: %w", err)
	}
	return &cfg, nil
}

func (r *InputRepository) selectTimed(ctx context.Context, label string, dest interface{}, query string) error {
	start := time.Now()
	err := r.db.SelectContext(ctx, dest, query)
	r.observe(label, start)
	return err
}

func (r *InputRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}
