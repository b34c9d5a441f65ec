package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

// RunStore keeps crawl-run bookkeeping in memory.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]store.Run)}
}

// StartRun records a running run. Starting an existing id is a no-op.
func (s *RunStore) StartRun(_ context.Context, id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; ok {
		return nil
	}
	s.runs[id] = store.Run{ID: id, StartedAt: startedAt, Status: store.RunRunning}
	return nil
}

// CompleteRun overwrites the final state of a known run.
func (s *RunStore) CompleteRun(_ context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.runs[run.ID]
	if !ok {
		return store.ErrNotFound
	}
	run.StartedAt = existing.StartedAt
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by id.
func (s *RunStore) GetRun(_ context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return page(runs, limit, 0), nil
}
