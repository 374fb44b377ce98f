// Command report re-renders the artifacts of a stored run, the latest one by
// default, into a directory and optionally uploads them to S3.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
	"network-kpi/internal/reporting"
	"network-kpi/internal/storage"
	"network-kpi/internal/storage/postgres"
	"network-kpi/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	outputDir := flag.String("output-dir", "out", "output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (or set POSTGRES_DSN)")
	runID := flag.String("run-id", "", "run to render, latest when empty")
	s3Bucket := flag.String("s3-bucket", "", "also upload to this bucket (or set S3_BUCKET)")
	s3Prefix := flag.String("s3-prefix", "segments", "object key prefix")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		*postgresDSN = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		*s3Bucket = v
	}
	if *postgresDSN == "" {
		return errors.New("--postgres-dsn is required")
	}

	log := logger.New(*verbose)
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, *postgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	run, err := loadRun(ctx, postgres.NewRunStore(pool), *runID)
	if err != nil {
		return err
	}
	log.Info("rendering run", "run_id", run.ID, "rows", len(run.Detail), "complete", run.Complete)

	artifacts := reporting.Render(run)
	if _, err := reporting.NewWriter(*outputDir, log).Write(artifacts); err != nil {
		return err
	}

	if *s3Bucket != "" {
		return upload(ctx, log, *s3Bucket, *s3Prefix, run.ID, artifacts)
	}
	return nil
}

// loadRun reads id, or the newest stored run when id is empty.
func loadRun(ctx context.Context, store storage.RunStore, id string) (*domain.Run, error) {
	if id == "" {
		ids, err := store.ListRunIDs(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("no stored runs: %w", storage.ErrNotFound)
		}
		id = ids[0]
	}
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

func upload(ctx context.Context, log *slog.Logger, bucket, prefix, runID string, artifacts []reporting.Artifact) error {
	client, err := s3.NewClient(ctx, s3.Config{
		Bucket:   bucket,
		Region:   os.Getenv("S3_REGION"),
		Endpoint: os.Getenv("S3_ENDPOINT"),
		Prefix:   prefix,
	})
	if err != nil {
		return fmt.Errorf("create s3 client: %w", err)
	}
	uris, err := s3.NewUploader(client, bucket, prefix, log).Upload(ctx, runID, artifacts)
	if err != nil {
		return err
	}
	log.Info("artifacts uploaded", "objects", uris)
	return nil
}
