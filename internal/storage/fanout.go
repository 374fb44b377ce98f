package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
	"network-kpi/internal/observability"
)

// NamedSink pairs a sink with the name used in logs and metrics.
type NamedSink struct {
	Name string
	Sink RunSink
}

// Fanout writes a run to every configured sink. A failing sink does not
// stop the others; all failures are joined into the returned error.
type Fanout struct {
	sinks []NamedSink
	log   *slog.Logger
}

// NewFanout creates a Fanout.
func NewFanout(log *slog.Logger, sinks ...NamedSink) *Fanout {
	return &Fanout{sinks: sinks, log: logger.OrDiscard(log)}
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// WriteRun implements RunSink.
func (f *Fanout) WriteRun(ctx context.Context, run *domain.Run) error {
	var errs []error
	for _, s := range f.sinks {
		start := time.Now()
		err := s.Sink.WriteRun(ctx, run)
		observability.RecordSinkWrite(s.Name, time.Since(start).Seconds(), err)
		if err != nil {
			f.log.Error("storage: sink write failed", "sink", s.Name, "run_id", run.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		f.log.Info("storage: run written", "sink", s.Name, "run_id", run.ID, "rows", len(run.Detail))
	}
	return errors.Join(errs...)
}
