package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network-kpi/internal/domain"
	"network-kpi/internal/storage"
	"network-kpi/internal/storage/clickhouse"
)

func testRun(id string) *domain.Run {
	label := domain.WindowLabel(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC).Unix())
	score := 0.9
	profitable := false
	return &domain.Run{
		ID:          id,
		GeneratedAt: time.Date(2024, 3, 13, 6, 0, 0, 0, time.UTC),
		Detail: []domain.DetailRow{
			{EntityID: "0xa", Window: label, RegionalHighScore: &score, Segment: domain.SegmentTopNodes, ProfitableLPTCalls: &profitable},
			{EntityID: "0xb", Window: label, Segment: domain.SegmentZeroContributor, Location: &domain.Location{Country: "US"}},
			{EntityID: "0xc", Window: label, Segment: domain.SegmentZeroContributor},
		},
		Pivot: &domain.PivotTable{
			Windows: []domain.WindowLabel{label},
			Rows: []domain.PivotRow{
				{Segment: domain.SegmentTopNodes, Counts: []int{1}},
				{Segment: domain.SegmentZeroContributor, Counts: []int{2}},
			},
		},
	}
}

func TestRunSink_WriteRun(t *testing.T) {
	conn := newTestConn(t)

	sink := clickhouse.NewRunSink(conn)
	ctx := context.Background()

	require.NoError(t, sink.WriteRun(ctx, testRun("r1")))

	totals, err := sink.SegmentTotals(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, map[domain.Segment]uint64{
		domain.SegmentTopNodes:        1,
		domain.SegmentZeroContributor: 2,
	}, totals)
}

func TestRunSink_DuplicateRun(t *testing.T) {
	conn := newTestConn(t)

	sink := clickhouse.NewRunSink(conn)
	ctx := context.Background()

	require.NoError(t, sink.WriteRun(ctx, testRun("r1")))
	assert.ErrorIs(t, sink.WriteRun(ctx, testRun("r1")), storage.ErrDuplicateKey)
}

func TestRunSink_UnknownRun(t *testing.T) {
	conn := newTestConn(t)

	_, err := clickhouse.NewRunSink(conn).SegmentTotals(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
