// Command server serves stored segmentation runs over HTTP: run listings,
// the rendered artifacts of each run and its segment totals.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"network-kpi/internal/logger"
	"network-kpi/internal/storage/clickhouse"
	"network-kpi/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (or set POSTGRES_DSN)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for segment totals (or set CLICKHOUSE_DSN)")
	sentryDSN := flag.String("sentry-dsn", "", "Sentry DSN (or set SENTRY_DSN)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		*postgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		*clickhouseDSN = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		*sentryDSN = v
	}
	if *postgresDSN == "" {
		return errors.New("--postgres-dsn is required")
	}

	log := logger.New(*verbose)

	if *sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: *sentryDSN}); err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, *postgresDSN, postgres.WithConnectTimeout(10*time.Second))
	if err != nil {
		return err
	}
	defer pool.Close()

	h := &handler{runs: postgres.NewRunStore(pool), log: log}
	if *clickhouseDSN != "" {
		conn, err := clickhouse.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer conn.Close()
		h.totals = clickhouse.NewRunSink(conn)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
