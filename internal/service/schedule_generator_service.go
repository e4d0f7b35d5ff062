package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

const (
	reportStatusComplete = "COMPLETE"
	teacherSeparator     = ", "
)

// InputSnapshotReader loads the stored scheduling inputs.
type InputSnapshotReader interface {
	ListDivisions(ctx context.Context) ([]models.Division, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	ListSubjectTeachers(ctx context.Context) ([]models.SubjectTeacher, error)
	LatestConfig(ctx context.Context) (*models.ScheduleConfig, error)
}

// ScheduleGeneratorConfig holds the server side generation defaults.
type ScheduleGeneratorConfig struct {
	Options         scheduler.Options
	MaxTeacherLoad  int
	LectureDuration int
	LabBlockSlots   int
	CacheTTL        time.Duration
}

// ScheduleGeneratorService turns scheduling inputs into slot previews and
// generated timetables.
type ScheduleGeneratorService struct {
	inputs    InputSnapshotReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleGeneratorConfig
}

// NewScheduleGeneratorService wires generator dependencies. inputs may be nil
// when no snapshot store is configured.
func NewScheduleGeneratorService(
	inputs InputSnapshotReader,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGeneratorService{
		inputs:    inputs,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Preview builds the slot grid for cfg, or for the stored config when cfg is nil.
func (s *ScheduleGeneratorService) Preview(ctx context.Context, cfg *models.ScheduleConfig) (*dto.SlotsResponse, error) {
	config, err := s.resolveConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	key, keyErr := cacheKey(cachePreviewPrefix, config)
	if keyErr == nil {
		var cached dto.SlotsResponse
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	grid, err := scheduler.BuildSlots(config)
	if err != nil {
		return nil, err
	}

	resp := renderSlots(grid)
	if keyErr == nil {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, nil
}

// Generate runs the optimizer for req and renders the best timetable found.
// Running out of generations or time is not an error; the report says how
// the search ended and whether hard conflicts remain.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateRequest) (*dto.TimetableResponse, error) {
	return s.generate(ctx, req, nil)
}

// Validate checks the request payload without loading or generating anything.
func (s *ScheduleGeneratorService) Validate(req dto.GenerateRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WrapAs(appErrors.ErrValidation, err, "invalid timetable generation payload")
	}
	if req.Config != nil {
		if err := s.validateConfig(*req.Config); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScheduleGeneratorService) generate(ctx context.Context, req dto.GenerateRequest, progress func(scheduler.GenerationStats)) (*dto.TimetableResponse, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	config, err := s.resolveConfig(ctx, req.Config)
	if err != nil {
		return nil, err
	}
	input, err := s.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}
	if input.LabBlockSlots <= 0 {
		input.LabBlockSlots = config.LabBlockSlots
	}

	grid, err := scheduler.BuildSlots(config)
	if err != nil {
		return nil, err
	}
	problem, err := scheduler.NewProblem(grid, input)
	if err != nil {
		s.logger.Info("generation rejected", zap.Error(err))
		return nil, err
	}

	opts := s.options(req.Options)

	var key string
	if opts.Seed != nil {
		cacheOpts := opts
		cacheOpts.Workers = 0
		if k, keyErr := cacheKey(cacheResultPrefix, config, input, cacheOpts, *opts.Seed); keyErr == nil {
			key = k
			var cached dto.TimetableResponse
			if hit, _ := s.cache.Get(ctx, key, &cached); hit {
				return &cached, nil
			}
		}
	}

	optimizer := scheduler.NewOptimizer(opts, s.logger)
	optimizer.Progress = progress

	s.logger.Info("generation started",
		zap.Int("divisions", len(problem.Divisions)),
		zap.Int("teachers", len(problem.Teachers)),
		zap.Int("subjects", len(problem.Subjects)),
		zap.Int("population", optimizer.Options().PopulationSize),
		zap.Int("max_generations", optimizer.Options().MaxGenerations),
	)

	result, err := optimizer.Run(ctx, problem)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		return nil, err
	}

	report := buildReport(result)
	s.metrics.ObserveGeneration(report, result.Duration)
	s.logger.Info("generation finished",
		zap.Int64("seed", report.Seed),
		zap.Int("generations", report.Generations),
		zap.String("termination", report.Termination),
		zap.Int("hard_conflicts", report.HardConflicts),
		zap.Int64("soft_score", report.SoftScore),
		zap.Int64("duration_ms", report.DurationMs),
	)

	resp := renderTimetable(problem, result.Best, report)
	if key != "" && cacheableTermination(report.Termination) {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, nil
}

func (s *ScheduleGeneratorService) validateConfig(cfg models.ScheduleConfig) error {
	if err := s.validator.Struct(cfg); err != nil {
		return appErrors.WrapAs(appErrors.ErrInvalidConfig, err, configValidationMessage(err))
	}
	return nil
}

func (s *ScheduleGeneratorService) resolveConfig(ctx context.Context, cfg *models.ScheduleConfig) (models.ScheduleConfig, error) {
	if cfg == nil {
		if s.inputs == nil {
			return models.ScheduleConfig{}, appErrors.Clone(appErrors.ErrInvalidConfig, "schedule config is required")
		}
		stored, err := s.inputs.LatestConfig(ctx)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return models.ScheduleConfig{}, appErrors.Clone(appErrors.ErrInvalidConfig, "no schedule config has been stored")
			}
			s.logger.Error("failed to load schedule config", zap.Error(err))
			return models.ScheduleConfig{}, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load schedule config")
		}
		cfg = stored
	}

	if err := s.validateConfig(*cfg); err != nil {
		return models.ScheduleConfig{}, err
	}

	config := *cfg
	if config.LectureDuration <= 0 {
		config.LectureDuration = s.cfg.LectureDuration
	}
	if config.LabBlockSlots <= 0 {
		config.LabBlockSlots = s.cfg.LabBlockSlots
	}
	return config.WithDefaults(), nil
}

func (s *ScheduleGeneratorService) resolveInput(ctx context.Context, req dto.GenerateRequest) (scheduler.Input, error) {
	input := scheduler.Input{
		Divisions:       req.Divisions,
		Teachers:        req.Teachers,
		Subjects:        req.Subjects,
		SubjectTeachers: req.SubjectTeachers,
		MaxTeacherLoad:  s.cfg.MaxTeacherLoad,
	}

	if !req.HasInputs() && s.inputs != nil {
		snapshot, err := s.loadSnapshot(ctx)
		if err != nil {
			s.logger.Error("failed to load input snapshot", zap.Error(err))
			return scheduler.Input{}, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load scheduling inputs")
		}
		snapshot.MaxTeacherLoad = input.MaxTeacherLoad
		input = snapshot
	}

	normalizeIDs(&input)
	return input, nil
}

func (s *ScheduleGeneratorService) loadSnapshot(ctx context.Context) (scheduler.Input, error) {
	var (
		in  scheduler.Input
		err error
	)
	if in.Divisions, err = s.inputs.ListDivisions(ctx); err != nil {
		return in, fmt.Errorf("divisions: %w", err)
	}
	if in.Teachers, err = s.inputs.ListTeachers(ctx); err != nil {
		return in, fmt.Errorf("teachers: %w", err)
	}
	if in.Subjects, err = s.inputs.ListSubjects(ctx); err != nil {
		return in, fmt.Errorf("subjects: %w", err)
	}
	if in.SubjectTeachers, err = s.inputs.ListSubjectTeachers(ctx); err != nil {
		return in, fmt.Errorf("subject teachers: %w", err)
	}
	return in, nil
}

// options layers request overrides on top of the configured defaults.
func (s *ScheduleGeneratorService) options(o dto.GenerateOptions) scheduler.Options {
	opts := s.cfg.Options
	if o.Seed != nil {
		seed := *o.Seed
		opts.Seed = &seed
	}
	if o.PopulationSize > 0 {
		opts.PopulationSize = o.PopulationSize
	}
	if o.MaxGenerations > 0 {
		opts.MaxGenerations = o.MaxGenerations
	}
	if o.EliteCount > 0 {
		opts.EliteCount = o.EliteCount
	}
	if o.TournamentSize > 0 {
		opts.TournamentSize = o.TournamentSize
	}
	if o.CrossoverRate > 0 {
		opts.CrossoverRate = o.CrossoverRate
	}
	if o.MutationRate > 0 {
		opts.MutationRate = o.MutationRate
	}
	if o.StagnationLimit > 0 {
		opts.StagnationLimit = o.StagnationLimit
	}
	if o.TimeBudgetMs > 0 {
		opts.TimeBudget = time.Duration(o.TimeBudgetMs) * time.Millisecond
	}
	if o.TargetSoft > 0 {
		opts.TargetSoft = o.TargetSoft
	}
	if o.Workers > 0 {
		opts.Workers = o.Workers
	}
	return opts
}

// normalizeIDs lets callers identify entities by name alone.
func normalizeIDs(in *scheduler.Input) {
	in.Divisions = append([]models.Division(nil), in.Divisions...)
	for i := range in.Divisions {
		if in.Divisions[i].ID == "" {
			in.Divisions[i].ID = in.Divisions[i].Name
		}
	}
	in.Teachers = append([]models.Teacher(nil), in.Teachers...)
	for i := range in.Teachers {
		if in.Teachers[i].ID == "" {
			in.Teachers[i].ID = in.Teachers[i].Name
		}
	}
	in.Subjects = append([]models.Subject(nil), in.Subjects...)
	for i := range in.Subjects {
		if in.Subjects[i].ID == "" {
			in.Subjects[i].ID = in.Subjects[i].Name
		}
	}
}

func cacheableTermination(termination string) bool {
	switch termination {
	case models.TerminationThreshold, models.TerminationMaxGenerations, models.TerminationStagnation:
		return true
	}
	return false
}

func configValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return appErrors.ErrInvalidConfig.Message
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid schedule configuration: " + strings.Join(fields, "; ")
}

func buildReport(result *scheduler.Result) models.FitnessReport {
	status := reportStatusComplete
	if result.Partial() {
		status = appErrors.ErrPartialSolution.Code
	}
	breakdown := make(map[string]int, len(result.Fitness.Breakdown))
	for k, v := range result.Fitness.Breakdown {
		breakdown[k] = v
	}
	return models.FitnessReport{
		HardConflicts:   result.Fitness.Hard,
		SoftScore:       result.Fitness.Soft,
		Total:           result.Fitness.Total,
		Generations:     result.Generations,
		Termination:     result.Termination,
		PartialSolution: result.Partial(),
		Status:          status,
		Seed:            result.Seed,
		DurationMs:      result.Duration.Milliseconds(),
		Breakdown:       breakdown,
		History:         result.History,
	}
}

func renderSlots(grid scheduler.SlotGrid) *dto.SlotsResponse {
	resp := &dto.SlotsResponse{
		WorkingDays: len(grid.Days),
		Days:        append([]string(nil), grid.Days...),
		Timetable:   make(map[string][]dto.SlotCell, len(grid.Days)),
	}
	for day, name := range grid.Days {
		slots := grid.ForDay(day)
		cells := make([]dto.SlotCell, len(slots))
		for i, slot := range slots {
			cells[i] = dto.SlotCell{Start: slot.Start, End: slot.End, Type: slot.Kind}
		}
		resp.Timetable[name] = cells
	}
	return resp
}

// renderTimetable keys the best candidate by division name. Duplicate names
// get the division ID appended.
func renderTimetable(p *scheduler.Problem, best *scheduler.Candidate, report models.FitnessReport) *dto.TimetableResponse {
	timetable := p.Timetable(best)

	subjectNames := make(map[string]string, len(p.Subjects))
	for _, subject := range p.Subjects {
		subjectNames[subject.ID] = subject.Name
	}
	teacherNames := make(map[string]string, len(p.Teachers))
	for _, teacher := range p.Teachers {
		teacherNames[teacher.ID] = teacher.Name
	}

	resp := &dto.TimetableResponse{
		Timetable: make(map[string]dto.DivisionTimetable, len(p.Divisions)),
		Days:      append([]string(nil), p.Grid.Days...),
		Divisions: make([]string, 0, len(p.Divisions)),
		Report:    report,
	}

	for _, division := range p.Divisions {
		name := division.Name
		if name == "" {
			name = division.ID
		}
		if _, taken := resp.Timetable[name]; taken {
			name = fmt.Sprintf("%s (%s)", name, division.ID)
		}

		schedule := timetable[division.ID]
		rendered := dto.DivisionTimetable{
			ID:       division.ID,
			Schedule: make(map[string][]dto.TimetableCell, len(schedule.Days)),
		}
		for _, day := range schedule.Days {
			cells := make([]dto.TimetableCell, len(day.Cells))
			for i, cell := range day.Cells {
				out := dto.TimetableCell{
					Type:       cell.Kind,
					Start:      cell.Start,
					End:        cell.End,
					SubjectID:  cell.SubjectID,
					TeacherIDs: cell.TeacherIDs,
				}
				if cell.SubjectID != "" {
					out.Subject = subjectNames[cell.SubjectID]
					names := make([]string, len(cell.TeacherIDs))
					for j, id := range cell.TeacherIDs {
						names[j] = teacherNames[id]
					}
					out.Teacher = strings.Join(names, teacherSeparator)
				}
				cells[i] = out
			}
			rendered.Schedule[day.Day] = cells
		}

		resp.Timetable[name] = rendered
		resp.Divisions = append(resp.Divisions, name)
	}
	return resp
}
