// Package scheduler re-runs the segmentation batch on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"network-kpi/internal/logger"
)

// Job is one scheduled unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler runs jobs on cron schedules. A tick that fires while the previous
// run of the same job is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	ctx  context.Context
}

// New creates a Scheduler evaluating schedules in UTC.
func New(log *slog.Logger) *Scheduler {
	log = logger.OrDiscard(log)
	adapter := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		log: log,
		ctx: context.Background(),
	}
}

// Validate reports whether spec is a valid standard cron expression or descriptor.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Add registers job on spec. Examples: "0 6 * * 1" (Mondays 06:00 UTC),
// "@weekly", "@every 1h".
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.log.Info("scheduler: job started", "job", job.Name())
		if err := job.Run(s.ctx); err != nil {
			s.log.Error("scheduler: job failed", "job", job.Name(), "error", err, "duration", time.Since(start))
			return
		}
		s.log.Info("scheduler: job completed", "job", job.Name(), "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.log.Info("scheduler: job registered", "job", job.Name(), "schedule", spec)
	return nil
}

// Next returns the next activation time of each registered job.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish. Jobs receive ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("scheduler: started", "jobs", len(s.cron.Entries()))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.log.Info("scheduler: stopped")
	return nil
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("scheduler: "+msg, append(keysAndValues, "error", err)...)
}
