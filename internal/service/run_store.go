package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
)

const subscriberBuffer = 16

type runEntry struct {
	run       models.GenerationRun
	request   dto.GenerateRequest
	result    *dto.TimetableResponse
	cancel    context.CancelFunc
	canceled  bool
	expiresAt time.Time

	subscribers map[int]chan dto.RunEvent
	nextSub     int
}

func (e *runEntry) event() dto.RunEvent {
	return dto.RunEvent{RunID: e.run.ID, Status: e.run.Status, Progress: e.run.Progress, Error: e.run.Error}
}

// runStore keeps asynchronous runs in memory. Finished runs expire ttl after
// they finish; queued and running ones are kept until they finish.
type runStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]*runEntry
}

func newRunStore(ttl time.Duration) *runStore {
	return &runStore{
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		items: make(map[string]*runEntry),
	}
}

func (s *runStore) Create(req dto.GenerateRequest) models.GenerationRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()

	entry := &runEntry{
		run: models.GenerationRun{
			ID:        uuid.NewString(),
			Status:    models.RunStatusQueued,
			CreatedAt: s.now(),
		},
		request:     req,
		subscribers: make(map[int]chan dto.RunEvent),
	}
	s.items[entry.run.ID] = entry
	return entry.run
}

func (s *runStore) Get(id string) (models.GenerationRun, *dto.TimetableResponse, bool) {
	s.mu.RLock()
	entry, ok := s.items[id]
	if !ok {
		s.mu.RUnlock()
		return models.GenerationRun{}, nil, false
	}
	run, result, expired := entry.run, entry.result, s.expiredLocked(entry)
	s.mu.RUnlock()

	if expired {
		s.Delete(id)
		return models.GenerationRun{}, nil, false
	}
	return run, result, true
}

func (s *runStore) Request(id string) (dto.GenerateRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.items[id]
	if !ok {
		return dto.GenerateRequest{}, false
	}
	return entry.request, true
}

func (s *runStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.items[id]; ok {
		closeSubscribers(entry)
		delete(s.items, id)
	}
}

// Start marks a queued run as running. It returns false when the run was
// canceled or removed before a worker picked it up.
func (s *runStore) Start(id string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok || entry.run.Status.Terminal() {
		return false
	}
	if entry.canceled {
		s.finishLocked(entry, models.RunStatusCanceled, nil, "")
		return false
	}
	now := s.now()
	entry.run.Status = models.RunStatusRunning
	entry.run.StartedAt = &now
	entry.cancel = cancel
	publish(entry)
	return true
}

// Requeue puts a failed attempt back into the queued state. A run canceled
// meanwhile is finished as canceled instead.
func (s *runStore) Requeue(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok || entry.run.Status.Terminal() {
		return
	}
	if entry.canceled {
		s.finishLocked(entry, models.RunStatusCanceled, nil, message)
		return
	}
	entry.run.Status = models.RunStatusQueued
	entry.run.Error = message
	entry.cancel = nil
	publish(entry)
}

func (s *runStore) Progress(id string, progress models.RunProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok || entry.run.Status != models.RunStatusRunning {
		return
	}
	entry.run.Progress = progress
	publish(entry)
}

// Finish records the final state and closes every subscriber. A run the
// caller canceled is reported as canceled even when a result came back.
func (s *runStore) Finish(id string, status models.RunStatus, result *dto.TimetableResponse, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok || entry.run.Status.Terminal() {
		return
	}
	if entry.canceled && status == models.RunStatusSucceeded {
		status = models.RunStatusCanceled
	}
	s.finishLocked(entry, status, result, message)
}

func (s *runStore) finishLocked(entry *runEntry, status models.RunStatus, result *dto.TimetableResponse, message string) {
	now := s.now()
	entry.run.Status = status
	entry.run.Error = message
	entry.run.FinishedAt = &now
	entry.result = result
	entry.cancel = nil
	entry.expiresAt = now.Add(s.ttl)
	publish(entry)
	closeSubscribers(entry)
}

// Cancel flags the run and stops its optimizer. A queued run is finished
// immediately; a running one finishes once the optimizer returns.
func (s *runStore) Cancel(id string) (models.GenerationRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return models.GenerationRun{}, false
	}
	if entry.run.Status.Terminal() {
		return entry.run, true
	}

	entry.canceled = true
	switch entry.run.Status {
	case models.RunStatusQueued:
		s.finishLocked(entry, models.RunStatusCanceled, nil, entry.run.Error)
	case models.RunStatusRunning:
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	return entry.run, true
}

// Subscribe streams events for a run. The channel receives the current
// state first and is closed when the run finishes or unsubscribe is called.
func (s *runStore) Subscribe(id string) (<-chan dto.RunEvent, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return nil, nil, false
	}

	ch := make(chan dto.RunEvent, subscriberBuffer)
	ch <- entry.event()
	if entry.run.Status.Terminal() {
		close(ch)
		return ch, func() {}, true
	}

	subID := entry.nextSub
	entry.nextSub++
	entry.subscribers[subID] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := entry.subscribers[subID]; ok {
				delete(entry.subscribers, subID)
				close(sub)
			}
		})
	}
	return ch, unsubscribe, true
}

// Len returns the number of stored runs.
func (s *runStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *runStore) expiredLocked(entry *runEntry) bool {
	return entry.run.Status.Terminal() && !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt)
}

func (s *runStore) purgeLocked() {
	for id, entry := range s.items {
		if s.expiredLocked(entry) {
			closeSubscribers(entry)
			delete(s.items, id)
		}
	}
}

// publish never blocks; slow subscribers miss intermediate progress.
func publish(entry *runEntry) {
	event := entry.event()
	for _, ch := range entry.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func closeSubscribers(entry *runEntry) {
	for id, ch := range entry.subscribers {
		close(ch)
		delete(entry.subscribers, id)
	}
}
