package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"network-kpi/internal/domain"
	"network-kpi/internal/storage"
)

func testRun(id string, at time.Time) *domain.Run {
	label := domain.WindowLabel(at.Unix())
	return &domain.Run{
		ID:          id,
		GeneratedAt: at,
		Detail: []domain.DetailRow{
			{EntityID: "0xa", Window: label, Segment: domain.SegmentTopNodes},
			{EntityID: "0xb", Window: label, Segment: domain.SegmentOther},
		},
		Pivot: &domain.PivotTable{
			Windows: []domain.WindowLabel{label},
			Rows: []domain.PivotRow{
				{Segment: domain.SegmentTopNodes, Counts: []int{1}},
				{Segment: domain.SegmentOther, Counts: []int{1}},
			},
		},
		Complete: true,
	}
}

func TestRunStore_WriteAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 18, 6, 0, 0, 0, time.UTC)

	if err := store.WriteRun(ctx, testRun("r1", at)); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if len(got.Detail) != 2 || got.Pivot.Total(0) != 2 {
		t.Errorf("unexpected run: %+v", got)
	}
	if !got.Complete {
		t.Error("Complete flag lost")
	}
}

func TestRunStore_Immutable(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	run := testRun("r1", time.Now())

	if err := store.WriteRun(ctx, run); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}
	run.Detail[0].Segment = domain.SegmentOther
	run.Pivot.Rows[0].Counts[0] = 99

	got, _ := store.GetRun(ctx, "r1")
	if got.Detail[0].Segment != domain.SegmentTopNodes {
		t.Error("stored detail was mutated through the caller's slice")
	}
	if got.Pivot.Rows[0].Counts[0] != 1 {
		t.Error("stored pivot was mutated through the caller's slice")
	}

	if err := store.WriteRun(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_Validation(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	if err := store.WriteRun(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil run: expected ErrInvalidInput, got %v", err)
	}
	if err := store.WriteRun(ctx, &domain.Run{ID: "x"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("missing pivot: expected ErrInvalidInput, got %v", err)
	}

	dup := testRun("r2", time.Now())
	dup.Detail[1].EntityID = "0xa"
	if err := store.WriteRun(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("duplicate row: expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_GetNotFound(t *testing.T) {
	_, err := NewRunStore().GetRun(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_ListRunIDs(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	base := time.Date(2024, 3, 18, 6, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := store.WriteRun(ctx, testRun(id, base.AddDate(0, 0, 7*i))); err != nil {
			t.Fatalf("WriteRun %s failed: %v", id, err)
		}
	}

	ids, err := store.ListRunIDs(ctx, 2)
	if err != nil {
		t.Fatalf("ListRunIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "new" || ids[1] != "mid" {
		t.Errorf("unexpected ids: %v", ids)
	}
}
