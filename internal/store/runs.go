package store

import (
	"context"
	"time"
)

// RunStatus mirrors the crawl_runs status column.
type RunStatus string

// Run statuses persisted in crawl_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models one crawl run.
type Run struct {
	// ID is a UUIDv7 string assigned when the run starts.
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is nil until the run is marked success or error.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Pages      int        `json:"pages"`
	Quotes     int        `json:"quotes"`
	Tags       int        `json:"tags"`
	RowErrors  int        `json:"row_errors"`
	// Error optionally stores the final failure reason.
	Error *string `json:"error,omitempty"`
}

// RunRepository persists crawl-run bookkeeping.
type RunRepository interface {
	// StartRun records a new run in the running state.
	StartRun(ctx context.Context, id string, startedAt time.Time) error
	// CompleteRun stores the final status and counters of run.
	CompleteRun(ctx context.Context, run Run) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns the newest runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
