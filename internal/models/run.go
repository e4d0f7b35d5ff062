package models

import "time"

// RunStatus tracks the lifecycle of an asynchronous generation.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCanceled
}

// RunProgress is the latest generation reported by a running optimizer.
type RunProgress struct {
	Generation    int   `json:"generation"`
	BestTotal     int64 `json:"best_total"`
	HardConflicts int   `json:"hard_conflicts"`
	SoftScore     int64 `json:"soft_score"`
}

// GenerationRun is the externally visible state of an asynchronous generation.
type GenerationRun struct {
	ID         string      `json:"id"`
	Status     RunStatus   `json:"status"`
	Progress   RunProgress `json:"progress"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}
