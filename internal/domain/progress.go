package domain

import (
	"time"
)

// ProgressInfo is a consistent snapshot of one run's progress state. It is a
// value copy: observers can hold it without synchronizing with the tracker.
type ProgressInfo struct {
	// Stage is the pipeline stage at snapshot time.
	Stage StageState `json:"stage"`

	// Completed lists the (case, evaluator) keys that have finished.
	Completed []string `json:"completed"`

	// CompletedCount and TotalCount bound completion. CompletedCount never
	// exceeds TotalCount and never decreases within a run.
	CompletedCount int `json:"completed_count"`
	TotalCount     int `json:"total_count"`

	// Percent is CompletedCount / TotalCount * 100.
	Percent float64 `json:"percent"`

	// ETA estimates the remaining time from the recent-duration window.
	// Zero when no durations have been observed yet.
	ETA time.Duration `json:"eta"`

	// Elapsed is the time since the run started.
	Elapsed time.Duration `json:"elapsed"`

	// StartedAt marks the run start.
	StartedAt time.Time `json:"started_at"`
}
