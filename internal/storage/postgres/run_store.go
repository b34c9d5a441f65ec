package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

const runColumns = `run_id, started_at, finished_at, status, pages, quotes, tags, row_errors, error_message`

// RunStore implements store.RunRepository on the crawl_runs table.
type RunStore struct {
	pool Pool
}

// NewRunStore wraps an existing pool.
func NewRunStore(pool Pool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// StartRun inserts a running row. Starting the same id twice is a no-op.
func (s *RunStore) StartRun(ctx context.Context, id string, startedAt time.Time) error {
	query := `
		INSERT INTO crawl_runs (run_id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, query, id, startedAt, string(store.RunRunning)); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// CompleteRun stores the final status and counters.
func (s *RunStore) CompleteRun(ctx context.Context, run store.Run) error {
	query := `
		UPDATE crawl_runs
		SET finished_at = $1, status = $2, pages = $3, quotes = $4, tags = $5, row_errors = $6, error_message = $7
		WHERE run_id = $8;
	`
	tag, err := s.pool.Exec(ctx, query,
		run.FinishedAt,
		string(run.Status),
		run.Pages,
		run.Quotes,
		run.Tags,
		run.RowErrors,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRun loads one run by id.
func (s *RunStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM crawl_runs WHERE run_id = $1;`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM crawl_runs ORDER BY started_at DESC LIMIT $1;`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Pages,
		&run.Quotes,
		&run.Tags,
		&run.RowErrors,
		&run.Error,
	)
	if err != nil {
		return store.Run{}, err
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
