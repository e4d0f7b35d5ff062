package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func newRunServiceForTest(t *testing.T, generator *ScheduleGeneratorService) *RunService {
	t.Helper()
	svc := NewRunService(generator, NewMetricsService(), zap.NewNop(), RunServiceConfig{
		TTL:        time.Minute,
		Workers:    2,
		Retries:    1,
		RetryDelay: 10 * time.Millisecond,
	})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitForStatus(t *testing.T, svc *RunService, id string, want models.RunStatus) *dto.RunResponse {
	t.Helper()
	var last *dto.RunResponse
	require.Eventually(t, func() bool {
		resp, err := svc.Get(context.Background(), id)
		if err != nil {
			return false
		}
		last = resp
		return resp.Status == want
	}, 10*time.Second, 10*time.Millisecond)
	return last
}

// endlessRequest cannot reach the target and only stops when canceled.
func endlessRequest() dto.GenerateRequest {
	return dto.GenerateRequest{
		Divisions: []models.Division{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Teachers:  []models.Teacher{{ID: "t-1", Name: "Alice"}},
		Subjects: []models.Subject{
			{ID: "math", Name: "Math", Category: models.SubjectCategoryMajor, WeeklyHours: 3, TeachersRequired: 1},
		},
		Config: &models.ScheduleConfig{WorkingDays: 1, StartTime: "09:00", EndTime: "12:00", BreakCount: 0, BreakDuration: 15},
		Options: dto.GenerateOptions{
			Seed:            seedPtr(1),
			MaxGenerations:  100000,
			StagnationLimit: 100000,
			TimeBudgetMs:    600000,
		},
	}
}

func TestRunServiceCompletesRun(t *testing.T) {
	svc := newRunServiceForTest(t, newGeneratorForTest(nil, nil))

	accepted, err := svc.Submit(context.Background(), singleSubjectRequest())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, accepted.Status)

	run := waitForStatus(t, svc, accepted.RunID, models.RunStatusSucceeded)
	require.NotNil(t, run.Result)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, 3, countSubject(run.Result, "SE-A", "DS"))

	result, err := svc.Result(context.Background(), accepted.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.Result, result)
}

func TestRunServiceCancelKeepsBestTimetable(t *testing.T) {
	svc := newRunServiceForTest(t, newGeneratorForTest(nil, nil))

	accepted, err := svc.Submit(context.Background(), endlessRequest())
	require.NoError(t, err)
	waitForStatus(t, svc, accepted.RunID, models.RunStatusRunning)

	_, err = svc.Cancel(context.Background(), accepted.RunID)
	require.NoError(t, err)

	run := waitForStatus(t, svc, accepted.RunID, models.RunStatusCanceled)
	require.NotNil(t, run.Result)
	assert.Equal(t, models.TerminationCanceled, run.Result.Report.Termination)
	assert.True(t, run.Result.Report.PartialSolution)
}

func TestRunServiceRejectsInvalidPayload(t *testing.T) {
	svc := newRunServiceForTest(t, newGeneratorForTest(nil, nil))
	req := singleSubjectRequest()
	req.Config.BreakDuration = 5

	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidConfig))
}

func TestRunServiceFailsAfterRetries(t *testing.T) {
	inputs := &inputStub{err: errors.New("connection refused"), config: weekConfig()}
	svc := newRunServiceForTest(t, newGeneratorForTest(inputs, nil))

	accepted, err := svc.Submit(context.Background(), dto.GenerateRequest{})
	require.NoError(t, err)

	run := waitForStatus(t, svc, accepted.RunID, models.RunStatusFailed)
	assert.Equal(t, "failed to load scheduling inputs", run.Error)
	assert.Equal(t, int32(2), inputs.calls.Load())

	_, err = svc.Result(context.Background(), accepted.RunID)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestRunServiceInputErrorsAreNotRetried(t *testing.T) {
	svc := newRunServiceForTest(t, newGeneratorForTest(nil, nil))
	req := singleSubjectRequest()
	req.Subjects[0].WeeklyHours = 40

	accepted, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	run := waitForStatus(t, svc, accepted.RunID, models.RunStatusFailed)
	assert.Contains(t, run.Error, "needs 40 teaching slots")
}

func TestRunServiceSubscribeStreamsUntilFinished(t *testing.T) {
	svc := newRunServiceForTest(t, newGeneratorForTest(nil, nil))

	accepted, err := svc.Submit(context.Background(), singleSubjectRequest())
	require.NoError(t, err)

	events, unsubscribe, err := svc.Subscribe(accepted.RunID)
	require.NoError(t, err)
	defer unsubscribe()

	var received []dto.RunEvent
	timeout := time.After(10 * time.Second)
	for done := false; !done; {
		select {
		case event, ok := <-events:
			if !ok {
				done = true
				break
			}
			received = append(received, event)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}

	require.NotEmpty(t, received)
	assert.Equal(t, accepted.RunID, received[0].RunID)
	waitForStatus(t, svc, accepted.RunID, models.RunStatusSucceeded)
}

func TestRunServiceUnknownRun(t *testing.T) {
	svc := newRunServiceForTest(t, newGeneratorForTest(nil, nil))

	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.Cancel(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, _, err = svc.Subscribe("missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRunServiceCanceledWhileQueuedHasNoResult(t *testing.T) {
	svc := NewRunService(newGeneratorForTest(nil, nil), NewMetricsService(), zap.NewNop(), RunServiceConfig{TTL: time.Minute, Workers: 1})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	busy, err := svc.Submit(context.Background(), endlessRequest())
	require.NoError(t, err)
	queued, err := svc.Submit(context.Background(), singleSubjectRequest())
	require.NoError(t, err)

	run, err := svc.Cancel(context.Background(), queued.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCanceled, run.Status)

	_, err = svc.Result(context.Background(), queued.RunID)
	assert.True(t, errors.Is(err, appErrors.ErrCanceled))

	_, err = svc.Cancel(context.Background(), busy.RunID)
	require.NoError(t, err)
	waitForStatus(t, svc, busy.RunID, models.RunStatusCanceled)
}

// blockingInputs holds ListDivisions open until the caller gives up.
type blockingInputs struct {
	inputStub
	loading chan struct{}
}

func (s *blockingInputs) ListDivisions(ctx context.Context) ([]models.Division, error) {
	s.calls.Add(1)
	close(s.loading)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunServiceCanceledWhileLoadingInputs(t *testing.T) {
	inputs := &blockingInputs{inputStub: inputStub{config: weekConfig()}, loading: make(chan struct{})}
	svc := newRunServiceForTest(t, newGeneratorForTest(inputs, nil))

	accepted, err := svc.Submit(context.Background(), dto.GenerateRequest{})
	require.NoError(t, err)

	select {
	case <-inputs.loading:
	case <-time.After(10 * time.Second):
		t.Fatal("inputs were never loaded")
	}
	_, err = svc.Cancel(context.Background(), accepted.RunID)
	require.NoError(t, err)

	run := waitForStatus(t, svc, accepted.RunID, models.RunStatusCanceled)
	assert.NotNil(t, run.FinishedAt)
	assert.Nil(t, run.Result)
	assert.Equal(t, int32(1), inputs.calls.Load(), "a canceled run is not retried")

	_, err = svc.Result(context.Background(), accepted.RunID)
	assert.True(t, errors.Is(err, appErrors.ErrCanceled))

	events, unsubscribe, err := svc.Subscribe(accepted.RunID)
	require.NoError(t, err)
	defer unsubscribe()
	for range events {
	}
}
