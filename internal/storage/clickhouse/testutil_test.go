package clickhouse_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"network-kpi/internal/storage/clickhouse"
	"network-kpi/internal/storage/migrations"
)

const clickhouseImage = "clickhouse/clickhouse-server:24.1-alpine"

// newTestConn starts a throwaway ClickHouse server, lets the migrations
// create the network_kpi database and returns a connection to it.
func newTestConn(t *testing.T) *clickhouse.Conn {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        clickhouseImage,
			ExposedPorts: []string{"9000/tcp"},
			Env:          map[string]string{"CLICKHOUSE_SKIP_USER_SETUP": "1"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("9000/tcp"),
				wait.ForLog("Ready for connections").WithStartupTimeout(time.Minute),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", clickhouseImage, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate clickhouse: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := "clickhouse://default@" + net.JoinHostPort(host, port.Port()) + "/network_kpi"
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
