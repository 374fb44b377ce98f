// Command segments runs the weekly orchestrator segmentation batch and writes
// the pivot, detail and report artifacts. With --schedule it stays up and
// re-runs the batch on a cron schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"network-kpi/internal/logger"
	"network-kpi/internal/observability"
	"network-kpi/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := registerFlags(flag.CommandLine)
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	if err := opts.applyEnv(os.Getenv); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	cfg, err := opts.config()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(opts.verbose)

	if opts.sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.sentryDSN,
			AttachStacktrace: true,
		}); err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry initialized")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		srv := &http.Server{Addr: opts.metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics server listening", "addr", opts.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	b, err := newBatch(ctx, cfg, opts, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if opts.schedule == "" {
		return b.Run(ctx)
	}

	if err := scheduler.Validate(opts.schedule); err != nil {
		return err
	}
	sched := scheduler.New(log)
	if err := sched.Add(opts.schedule, scheduler.JobFunc{JobName: "segments", Fn: b.Run}); err != nil {
		return err
	}
	for _, next := range sched.Next() {
		log.Info("next scheduled run", "at", next.Format(time.RFC3339))
	}
	return sched.Run(ctx)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// captureError reports err to Sentry when it is initialized.
func captureError(log *slog.Logger, err error) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.CaptureException(err)
	log.Debug("error reported to sentry", "error", err)
}
