package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

const runQueueName = "timetable-runs"

// RunServiceConfig tunes asynchronous generation.
type RunServiceConfig struct {
	TTL        time.Duration
	Workers    int
	Retries    int
	RetryDelay time.Duration
	BufferSize int
}

// RunService executes generations in the background so clients can poll,
// stream progress and cancel them.
type RunService struct {
	generator *ScheduleGeneratorService
	store     *runStore
	queue     *jobs.Queue[string]
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewRunService builds the run store and its worker queue. Call Start before
// submitting runs.
func NewRunService(generator *ScheduleGeneratorService, metrics *MetricsService, logger *zap.Logger, cfg RunServiceConfig) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	s := &RunService{
		generator: generator,
		store:     newRunStore(cfg.TTL),
		metrics:   metrics,
		logger:    logger,
	}
	s.queue = jobs.NewQueue[string](runQueueName, s.execute, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	s.queue.OnFailure(s.fail)
	return s
}

// Start launches the run workers.
func (s *RunService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels in-flight runs and waits for the workers to exit.
func (s *RunService) Stop() {
	s.queue.Stop()
}

// Submit validates req and queues it.
func (s *RunService) Submit(ctx context.Context, req dto.GenerateRequest) (*dto.RunAccepted, error) {
	if err := s.generator.Validate(req); err != nil {
		return nil, err
	}

	run := s.store.Create(req)
	if err := s.queue.Enqueue(jobs.Job[string]{ID: run.ID, Payload: run.ID}); err != nil {
		s.store.Delete(run.ID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "generation queue is full, retry later")
		}
		s.logger.Error("failed to enqueue run", zap.String("run_id", run.ID), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrUnavailable, err, "generation queue unavailable")
	}

	s.logger.Info("run queued", zap.String("run_id", run.ID))
	return &dto.RunAccepted{RunID: run.ID, Status: run.Status}, nil
}

// Get returns the state of a run and its result once available.
func (s *RunService) Get(ctx context.Context, id string) (*dto.RunResponse, error) {
	run, result, ok := s.store.Get(id)
	if !ok {
		return nil, runNotFound()
	}
	return &dto.RunResponse{GenerationRun: run, Result: result}, nil
}

// Cancel stops a queued or running run. Canceling a finished run is a no-op.
func (s *RunService) Cancel(ctx context.Context, id string) (*dto.RunResponse, error) {
	run, ok := s.store.Cancel(id)
	if !ok {
		return nil, runNotFound()
	}
	s.logger.Info("run cancel requested", zap.String("run_id", id), zap.String("status", string(run.Status)))
	return &dto.RunResponse{GenerationRun: run}, nil
}

// Subscribe streams progress events of a run until it finishes.
func (s *RunService) Subscribe(id string) (<-chan dto.RunEvent, func(), error) {
	events, unsubscribe, ok := s.store.Subscribe(id)
	if !ok {
		return nil, nil, runNotFound()
	}
	return events, unsubscribe, nil
}

// Result returns the timetable of a run that produced one. Canceled runs
// keep the best timetable found before they stopped.
func (s *RunService) Result(ctx context.Context, id string) (*dto.TimetableResponse, error) {
	run, result, ok := s.store.Get(id)
	if !ok {
		return nil, runNotFound()
	}
	if result == nil {
		if run.Status == models.RunStatusCanceled {
			return nil, appErrors.Clone(appErrors.ErrCanceled, "run "+id+" was canceled before producing a timetable")
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "run "+id+" has no timetable yet (status "+string(run.Status)+")")
	}
	return result, nil
}

func (s *RunService) execute(ctx context.Context, job jobs.Job[string]) error {
	id := job.Payload
	req, ok := s.store.Request(id)
	if !ok {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.store.Start(id, cancel) {
		return nil
	}

	s.metrics.RunStarted()
	defer s.metrics.RunFinished()

	logger := s.logger.With(zap.String("run_id", id), zap.Int("attempt", job.Attempt))
	logger.Info("run started")

	resp, err := s.generator.generate(runCtx, req, func(stats scheduler.GenerationStats) {
		s.store.Progress(id, models.RunProgress{
			Generation:    stats.Generation,
			BestTotal:     stats.Best.Total,
			HardConflicts: stats.Best.Hard,
			SoftScore:     stats.Best.Soft,
		})
	})
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			logger.Info("run canceled before producing a timetable", zap.Error(err))
			s.store.Finish(id, models.RunStatusCanceled, nil, "")
			return nil
		}
		if retryable(err) && ctx.Err() == nil {
			logger.Warn("run attempt failed", zap.Error(err))
			s.store.Requeue(id, appErrors.FromError(err).Message)
			return err
		}
		logger.Info("run failed", zap.Error(err))
		s.store.Finish(id, models.RunStatusFailed, nil, appErrors.FromError(err).Message)
		return nil
	}

	status := models.RunStatusSucceeded
	if resp.Report.Termination == models.TerminationCanceled {
		status = models.RunStatusCanceled
	}
	s.store.Finish(id, status, resp, "")
	logger.Info("run finished",
		zap.String("status", string(status)),
		zap.String("termination", resp.Report.Termination),
		zap.Int("hard_conflicts", resp.Report.HardConflicts),
	)
	return nil
}

func (s *RunService) fail(job jobs.Job[string], err error) {
	s.store.Finish(job.Payload, models.RunStatusFailed, nil, appErrors.FromError(err).Message)
}

// retryable reports whether another attempt may succeed. Input problems
// never go away on their own.
func retryable(err error) bool {
	return errors.Is(err, appErrors.ErrInternal) || errors.Is(err, appErrors.ErrUnavailable)
}

func runNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "generation run not found")
}
