package storage

import (
	"context"

	"network-kpi/internal/domain"
)

// RunSink receives the output of a finished run.
type RunSink interface {
	// WriteRun stores run atomically. Returns ErrDuplicateKey if run.ID exists.
	WriteRun(ctx context.Context, run *domain.Run) error
}

// RunStore is a RunSink that can read runs back.
type RunStore interface {
	RunSink

	// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRunIDs returns stored run IDs, newest first.
	ListRunIDs(ctx context.Context, limit int) ([]string, error)
}

// ValidateRun checks the invariants every sink relies on.
func ValidateRun(run *domain.Run) error {
	if run == nil || run.ID == "" || run.Pivot == nil {
		return ErrInvalidInput
	}
	seen := make(map[domain.EntityWindowKey]struct{}, len(run.Detail))
	for i := range run.Detail {
		k := run.Detail[i].Key()
		if _, ok := seen[k]; ok {
			return ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}
	for _, row := range run.Pivot.Rows {
		if len(row.Counts) != len(run.Pivot.Windows) {
			return ErrInvalidInput
		}
	}
	return nil
}
