package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// InputService exposes the stored scheduling inputs read-only.
type InputService struct {
	repo   InputSnapshotReader
	logger *zap.Logger
}

// NewInputService constructs an InputService. A nil repo means no store is
// configured and every read reports the service as unavailable.
func NewInputService(repo InputSnapshotReader, logger *zap.Logger) *InputService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InputService{repo: repo, logger: logger}
}

func (s *InputService) Divisions(ctx context.Context) ([]models.Division, error) {
	if s.repo == nil {
		return nil, storeDisabled()
	}
	items, err := s.repo.ListDivisions(ctx)
	return nonNil(items), s.translate(err, "divisions")
}

func (s *InputService) Teachers(ctx context.Context) ([]models.Teacher, error) {
	if s.repo == nil {
		return nil, storeDisabled()
	}
	items, err := s.repo.ListTeachers(ctx)
	return nonNil(items), s.translate(err, "teachers")
}

func (s *InputService) Subjects(ctx context.Context) ([]models.Subject, error) {
	if s.repo == nil {
		return nil, storeDisabled()
	}
	items, err := s.repo.ListSubjects(ctx)
	return nonNil(items), s.translate(err, "subjects")
}

func (s *InputService) SubjectTeachers(ctx context.Context) ([]models.SubjectTeacher, error) {
	if s.repo == nil {
		return nil, storeDisabled()
	}
	items, err := s.repo.ListSubjectTeachers(ctx)
	return nonNil(items), s.translate(err, "subject teachers")
}

// Config returns the latest stored schedule config.
func (s *InputService) Config(ctx context.Context) (*models.ScheduleConfig, error) {
	if s.repo == nil {
		return nil, storeDisabled()
	}
	cfg, err := s.repo.LatestConfig(ctx)
	if err != nil {
		return nil, s.translate(err, "schedule config")
	}
	return cfg, nil
}

func (s *InputService) translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error("failed to load "+what, zap.Error(err))
	return appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load "+what)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func storeDisabled() error {
	return appErrors.Clone(appErrors.ErrUnavailable, "input store is not enabled")
}
