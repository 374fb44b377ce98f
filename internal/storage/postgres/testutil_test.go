package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"network-kpi/internal/storage/migrations"
	"network-kpi/internal/storage/postgres"
)

const postgresImage = "postgres:15-alpine"

// newTestPool starts a throwaway PostgreSQL container with the run schema
// applied. The container and pool are released when the test ends.
func newTestPool(t *testing.T) *postgres.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("network_kpi"),
		tcpostgres.WithUsername("kpi"),
		tcpostgres.WithPassword("kpi"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start %s: %v", postgresImage, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := postgres.NewPool(ctx, dsn, postgres.WithMaxConns(4), postgres.WithConnectTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func ptr[T any](v T) *T {
	return &v
}
