package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type inputStub struct {
	divisions       []models.Division
	teachers        []models.Teacher
	subjects        []models.Subject
	subjectTeachers []models.SubjectTeacher
	config          *models.ScheduleConfig
	err             error
	calls           atomic.Int32
}

func (s *inputStub) ListDivisions(ctx context.Context) ([]models.Division, error) {
	s.calls.Add(1)
	return s.divisions, s.err
}

func (s *inputStub) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	return s.teachers, s.err
}

func (s *inputStub) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	return s.subjects, s.err
}

func (s *inputStub) ListSubjectTeachers(ctx context.Context) ([]models.SubjectTeacher, error) {
	return s.subjectTeachers, s.err
}

func (s *inputStub) LatestConfig(ctx context.Context) (*models.ScheduleConfig, error) {
	if s.config == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no config")
	}
	return s.config, nil
}

type memoryCacheRepo struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: make(map[string][]byte)}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = raw
	r.sets++
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[string][]byte)
	return nil
}

func seedPtr(v int64) *int64 { return &v }

func weekConfig() *models.ScheduleConfig {
	return &models.ScheduleConfig{WorkingDays: 5, StartTime: "09:00", EndTime: "17:00", BreakCount: 1, BreakDuration: 60}
}

func newGeneratorForTest(inputs InputSnapshotReader, cache *CacheService) *ScheduleGeneratorService {
	return NewScheduleGeneratorService(inputs, cache, NewMetricsService(), nil, zap.NewNop(), ScheduleGeneratorConfig{
		Options: scheduler.Options{
			PopulationSize:  24,
			MaxGenerations:  150,
			StagnationLimit: 60,
			Workers:         2,
			TimeBudget:      10 * time.Second,
		},
		LectureDuration: models.DefaultLectureDuration,
		LabBlockSlots:   models.DefaultLabBlockSlots,
	})
}

func singleSubjectRequest() dto.GenerateRequest {
	return dto.GenerateRequest{
		Divisions: []models.Division{{ID: "div-a", Name: "SE-A"}},
		Teachers:  []models.Teacher{{ID: "t-1", Name: "Alice"}},
		Subjects: []models.Subject{
			{ID: "ds", Name: "DS", Category: models.SubjectCategoryMajor, WeeklyHours: 3, TeachersRequired: 1},
		},
		Config:  weekConfig(),
		Options: dto.GenerateOptions{Seed: seedPtr(11)},
	}
}

func countSubject(resp *dto.TimetableResponse, division, subject string) int {
	count := 0
	for _, cells := range resp.Timetable[division].Schedule {
		for _, cell := range cells {
			if cell.Subject == subject {
				count++
			}
		}
	}
	return count
}

func TestPreviewBuildsWeekGrid(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)

	resp, err := svc.Preview(context.Background(), weekConfig())
	require.NoError(t, err)

	assert.Equal(t, 5, resp.WorkingDays)
	assert.Equal(t, []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}, resp.Days)
	require.Len(t, resp.Timetable, 5)
	for day, cells := range resp.Timetable {
		require.Len(t, cells, 8, day)
		breaks := 0
		for _, cell := range cells {
			if cell.Type == models.SlotBreak {
				breaks++
			}
		}
		assert.Equal(t, 1, breaks, day)
		assert.Equal(t, dto.SlotCell{Start: "13:00", End: "14:00", Type: models.SlotBreak}, cells[4])
		assert.Equal(t, "09:00", cells[0].Start)
		assert.Equal(t, "17:00", cells[7].End)
	}
}

func TestPreviewRejectsInvalidConfig(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)

	cases := map[string]*models.ScheduleConfig{
		"end before start": {WorkingDays: 5, StartTime: "17:00", EndTime: "09:00", BreakCount: 1, BreakDuration: 60},
		"short break":      {WorkingDays: 5, StartTime: "09:00", EndTime: "17:00", BreakCount: 1, BreakDuration: 10},
		"too many days":    {WorkingDays: 8, StartTime: "09:00", EndTime: "17:00", BreakCount: 1, BreakDuration: 60},
		"missing":          nil,
	}
	for name, cfg := range cases {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			_, err := svc.Preview(context.Background(), cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidConfig), err.Error())
		})
	}
}

func TestPreviewUsesStoredConfigAndCache(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc := newGeneratorForTest(&inputStub{config: weekConfig()}, cache)

	first, err := svc.Preview(context.Background(), nil)
	require.NoError(t, err)
	second, err := svc.Preview(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.sets)
}

func TestGenerateSingleSubjectConverges(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)

	resp, err := svc.Generate(context.Background(), singleSubjectRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Report.HardConflicts)
	assert.False(t, resp.Report.PartialSolution)
	assert.Equal(t, reportStatusComplete, resp.Report.Status)
	assert.Equal(t, int64(11), resp.Report.Seed)
	assert.Equal(t, []string{"SE-A"}, resp.Divisions)
	assert.Equal(t, 3, countSubject(resp, "SE-A", "DS"))

	for _, cells := range resp.Timetable["SE-A"].Schedule {
		require.Len(t, cells, 8)
		assert.Equal(t, models.SlotBreak, cells[4].Type)
		for _, cell := range cells {
			if cell.Subject != "" {
				assert.Equal(t, "Alice", cell.Teacher)
				assert.Equal(t, models.SlotLecture, cell.Type)
			}
		}
	}
}

func TestGenerateJoinsTeacherNames(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)
	req := singleSubjectRequest()
	req.Teachers = []models.Teacher{{ID: "t-1", Name: "Alice"}, {ID: "t-2", Name: "Bob"}}
	req.Subjects = []models.Subject{
		{ID: "lab", Name: "Networks Lab", Category: models.SubjectCategoryMajor, IsLab: true, WeeklyHours: 2, TeachersRequired: 2},
	}

	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	found := 0
	for _, cells := range resp.Timetable["SE-A"].Schedule {
		for _, cell := range cells {
			if cell.Subject == "Networks Lab" {
				found++
				assert.Equal(t, models.SlotLab, cell.Type)
				assert.Len(t, cell.TeacherIDs, 2)
				assert.Contains(t, []string{"Alice, Bob", "Bob, Alice"}, cell.Teacher)
			}
		}
	}
	assert.Equal(t, 2, found)
}

func TestGenerateInsufficientData(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)

	noSubjects := singleSubjectRequest()
	noSubjects.Subjects = nil
	_, err := svc.Generate(context.Background(), noSubjects)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInsufficientData))

	overbooked := singleSubjectRequest()
	overbooked.Subjects[0].WeeklyHours = 36
	_, err = svc.Generate(context.Background(), overbooked)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInsufficientData))
}

func TestGenerateSharedTeacherReportsPartialSolution(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)
	req := dto.GenerateRequest{
		Divisions: []models.Division{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Teachers:  []models.Teacher{{ID: "t-1", Name: "Alice"}},
		Subjects: []models.Subject{
			{ID: "math", Name: "Math", Category: models.SubjectCategoryMajor, WeeklyHours: 3, TeachersRequired: 1},
		},
		Config:  &models.ScheduleConfig{WorkingDays: 1, StartTime: "09:00", EndTime: "12:00", BreakCount: 0, BreakDuration: 15},
		Options: dto.GenerateOptions{Seed: seedPtr(3), MaxGenerations: 20},
	}

	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Greater(t, resp.Report.HardConflicts, 0)
	assert.True(t, resp.Report.PartialSolution)
	assert.Equal(t, appErrors.ErrPartialSolution.Code, resp.Report.Status)
	assert.Contains(t, resp.Report.Breakdown, scheduler.PenaltyTeacherClash)
}

func TestGenerateValidatesPayload(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)
	req := singleSubjectRequest()
	req.Subjects[0].Category = "Elective"

	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGenerateLoadsSnapshotAndNormalizesIDs(t *testing.T) {
	inputs := &inputStub{
		divisions: []models.Division{{Name: "SE-A"}},
		teachers:  []models.Teacher{{Name: "Alice"}, {Name: "Bob"}},
		subjects: []models.Subject{
			{Name: "DS", Category: models.SubjectCategoryMajor, WeeklyHours: 2, TeachersRequired: 1},
		},
		subjectTeachers: []models.SubjectTeacher{{SubjectID: "DS", TeacherID: "Bob"}},
		config:          weekConfig(),
	}
	svc := newGeneratorForTest(inputs, nil)

	resp, err := svc.Generate(context.Background(), dto.GenerateRequest{Options: dto.GenerateOptions{Seed: seedPtr(5)}})
	require.NoError(t, err)

	assert.Equal(t, int32(1), inputs.calls.Load())
	assert.Equal(t, "SE-A", resp.Timetable["SE-A"].ID)
	assert.Equal(t, 2, countSubject(resp, "SE-A", "DS"))
	for _, cells := range resp.Timetable["SE-A"].Schedule {
		for _, cell := range cells {
			if cell.Subject == "DS" {
				assert.Equal(t, "Bob", cell.Teacher)
			}
		}
	}
}

func TestGenerateSnapshotFailureIsInternal(t *testing.T) {
	inputs := &inputStub{err: errors.New("connection refused"), config: weekConfig()}
	svc := newGeneratorForTest(inputs, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestGenerateCachesSeededResults(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc := newGeneratorForTest(nil, cache)

	first, err := svc.Generate(context.Background(), singleSubjectRequest())
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), singleSubjectRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.sets)
	assert.Equal(t, first.Report.Seed, second.Report.Seed)
	assert.Equal(t, countSubject(first, "SE-A", "DS"), countSubject(second, "SE-A", "DS"))

	unseeded := singleSubjectRequest()
	unseeded.Options.Seed = nil
	_, err = svc.Generate(context.Background(), unseeded)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.sets)
}

func TestGenerateIsReproducibleForSeed(t *testing.T) {
	svc := newGeneratorForTest(nil, nil)
	req := dto.GenerateRequest{
		Divisions: []models.Division{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Teachers:  []models.Teacher{{ID: "t1", Name: "Ana"}, {ID: "t2", Name: "Budi"}},
		Subjects: []models.Subject{
			{ID: "math", Name: "Math", Category: models.SubjectCategoryMajor, WeeklyHours: 4, TeachersRequired: 1},
			{ID: "eng", Name: "English", Category: models.SubjectCategoryMinor, WeeklyHours: 3, TeachersRequired: 1},
		},
		Config:  weekConfig(),
		Options: dto.GenerateOptions{Seed: seedPtr(42), MaxGenerations: 30, Workers: 1},
	}

	first, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	req.Options.Workers = 4
	second, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Timetable, second.Timetable)
	assert.Equal(t, first.Report.History, second.Report.History)
}
