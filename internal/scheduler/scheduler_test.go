package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	for _, spec := range []string{"0 6 * * 1", "@weekly", "@every 1h"} {
		if err := Validate(spec); err != nil {
			t.Errorf("Validate(%q): %v", spec, err)
		}
	}
	if err := Validate("every monday"); err == nil {
		t.Error("expected error for invalid spec")
	}
}

func TestScheduler_Add_InvalidSpec(t *testing.T) {
	s := New(nil)
	err := s.Add("61 * * * *", JobFunc{JobName: "noop", Fn: func(context.Context) error { return nil }})
	if err == nil {
		t.Error("expected error for out-of-range minute")
	}
}

func TestScheduler_RunsJobUntilCancelled(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	job := JobFunc{JobName: "count", Fn: func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("failures do not stop the schedule")
	}}
	if err := s.Add("@every 1s", job); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if n := len(s.Next()); n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 runs, got %d", runs.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
