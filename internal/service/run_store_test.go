package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
)

func TestRunStoreExpiresFinishedRuns(t *testing.T) {
	store := newRunStore(time.Minute)
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	run := store.Create(dto.GenerateRequest{})
	require.True(t, store.Start(run.ID, func() {}))
	store.Finish(run.ID, models.RunStatusSucceeded, &dto.TimetableResponse{}, "")

	now = now.Add(59 * time.Second)
	_, result, ok := store.Get(run.ID)
	require.True(t, ok)
	assert.NotNil(t, result)

	now = now.Add(2 * time.Second)
	_, _, ok = store.Get(run.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestRunStoreKeepsUnfinishedRuns(t *testing.T) {
	store := newRunStore(time.Minute)
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	run := store.Create(dto.GenerateRequest{})
	now = now.Add(time.Hour)

	got, _, ok := store.Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, models.RunStatusQueued, got.Status)
}

func TestRunStoreCancelQueuedRun(t *testing.T) {
	store := newRunStore(time.Minute)
	run := store.Create(dto.GenerateRequest{})

	canceled, ok := store.Cancel(run.ID)
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCanceled, canceled.Status)
	assert.False(t, store.Start(run.ID, func() {}), "canceled runs are never started")
}

func TestRunStoreCancelRunningRun(t *testing.T) {
	store := newRunStore(time.Minute)
	run := store.Create(dto.GenerateRequest{})

	stopped := false
	require.True(t, store.Start(run.ID, func() { stopped = true }))

	got, ok := store.Cancel(run.ID)
	require.True(t, ok)
	assert.True(t, stopped)
	assert.Equal(t, models.RunStatusRunning, got.Status)

	store.Finish(run.ID, models.RunStatusSucceeded, &dto.TimetableResponse{}, "")
	got, result, _ := store.Get(run.ID)
	assert.Equal(t, models.RunStatusCanceled, got.Status)
	assert.NotNil(t, result)
}

func TestRunStoreSubscribeReceivesProgress(t *testing.T) {
	store := newRunStore(time.Minute)
	run := store.Create(dto.GenerateRequest{})

	events, unsubscribe, ok := store.Subscribe(run.ID)
	require.True(t, ok)
	defer unsubscribe()

	first := <-events
	assert.Equal(t, models.RunStatusQueued, first.Status)

	store.Start(run.ID, func() {})
	store.Progress(run.ID, models.RunProgress{Generation: 3, BestTotal: 12})
	store.Finish(run.ID, models.RunStatusSucceeded, nil, "")

	var statuses []models.RunStatus
	for event := range events {
		statuses = append(statuses, event.Status)
	}
	assert.Equal(t, []models.RunStatus{models.RunStatusRunning, models.RunStatusRunning, models.RunStatusSucceeded}, statuses)
}

func TestRunStoreSubscribeToFinishedRun(t *testing.T) {
	store := newRunStore(time.Minute)
	run := store.Create(dto.GenerateRequest{})
	store.Cancel(run.ID)

	events, unsubscribe, ok := store.Subscribe(run.ID)
	require.True(t, ok)
	defer unsubscribe()

	event, open := <-events
	require.True(t, open)
	assert.Equal(t, models.RunStatusCanceled, event.Status)
	_, open = <-events
	assert.False(t, open)
}

func TestRunStoreRequeueAfterCancelFinishesRun(t *testing.T) {
	store := newRunStore(time.Minute)
	run := store.Create(dto.GenerateRequest{})
	require.True(t, store.Start(run.ID, func() {}))

	_, ok := store.Cancel(run.ID)
	require.True(t, ok)
	store.Requeue(run.ID, "failed to load scheduling inputs")

	got, result, ok := store.Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCanceled, got.Status)
	assert.NotNil(t, got.FinishedAt)
	assert.Nil(t, result)
	assert.False(t, store.Start(run.ID, func() {}))
}

func TestRunStoreStartAfterCancelFinishesRun(t *testing.T) {
	store := newRunStore(time.Minute)
	run := store.Create(dto.GenerateRequest{})
	require.True(t, store.Start(run.ID, func() {}))
	_, ok := store.Cancel(run.ID)
	require.True(t, ok)

	events, unsubscribe, ok := store.Subscribe(run.ID)
	require.True(t, ok)
	defer unsubscribe()

	assert.False(t, store.Start(run.ID, func() {}))
	got, _, _ := store.Get(run.ID)
	assert.Equal(t, models.RunStatusCanceled, got.Status)

	var last dto.RunEvent
	for event := range events {
		last = event
	}
	assert.Equal(t, models.RunStatusCanceled, last.Status)
}
