// Package memory provides an in-memory run store for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"network-kpi/internal/domain"
	"network-kpi/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Run // keyed by run ID
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.Run),
	}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// WriteRun stores a copy of run. Returns ErrDuplicateKey if the ID exists.
func (s *RunStore) WriteRun(_ context.Context, run *domain.Run) error {
	if err := storage.ValidateRun(run); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[run.ID] = copyRun(run)
	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetRun(_ context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// ListRunIDs returns stored run IDs, newest first.
func (s *RunStore) ListRunIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	runs := make([]*domain.Run, 0, len(s.data))
	for _, r := range s.data {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].GeneratedAt.Equal(runs[j].GeneratedAt) {
			return runs[i].GeneratedAt.After(runs[j].GeneratedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids, nil
}

// copyRun deep-copies the slices of run so callers cannot mutate stored data.
func copyRun(run *domain.Run) *domain.Run {
	out := *run
	out.Windows = append([]domain.Window(nil), run.Windows...)
	out.Detail = append([]domain.DetailRow(nil), run.Detail...)
	out.Warnings = append([]string(nil), run.Warnings...)
	pivot := domain.PivotTable{Windows: append([]domain.WindowLabel(nil), run.Pivot.Windows...)}
	for _, row := range run.Pivot.Rows {
		pivot.Rows = append(pivot.Rows, domain.PivotRow{
			Segment: row.Segment,
			Counts:  append([]int(nil), row.Counts...),
		})
	}
	out.Pivot = &pivot
	return &out
}
