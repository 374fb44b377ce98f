package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
	"network-kpi/internal/storage/memory"
)

func storedRun(id string, at time.Time) *domain.Run {
	label := domain.WindowLabel(at.Unix())
	return &domain.Run{
		ID:          id,
		GeneratedAt: at,
		Detail: []domain.DetailRow{
			{EntityID: "0xa", Window: label, Segment: domain.SegmentTopNodes},
			{EntityID: "0xb", Window: label, Segment: domain.SegmentOther},
			{EntityID: "0xc", Window: label, Segment: domain.SegmentOther},
		},
		Pivot: &domain.PivotTable{
			Windows: []domain.WindowLabel{label},
			Rows: []domain.PivotRow{
				{Segment: domain.SegmentTopNodes, Counts: []int{1}},
				{Segment: domain.SegmentOther, Counts: []int{2}},
			},
		},
		Warnings: []string{"transcoders truncated at offset 5000"},
	}
}

func newTestServer(t *testing.T, totals SegmentTotaler) *httptest.Server {
	t.Helper()
	store := memory.NewRunStore()
	ctx := context.Background()
	require.NoError(t, store.WriteRun(ctx, storedRun("r1", time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC))))
	require.NoError(t, store.WriteRun(ctx, storedRun("r2", time.Date(2024, 3, 18, 6, 0, 0, 0, time.UTC))))

	h := &handler{runs: store, totals: totals, log: logger.OrDiscard(nil)}
	srv := httptest.NewServer(h.routes())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestListRuns(t *testing.T) {
	srv := newTestServer(t, nil)

	var body map[string][]string
	status := getJSON(t, srv.URL+"/runs", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"r2", "r1"}, body["runs"])

	status = getJSON(t, srv.URL+"/runs?limit=1", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"r2"}, body["runs"])
}

func TestListRuns_BadLimit(t *testing.T) {
	srv := newTestServer(t, nil)

	var body map[string]string
	status := getJSON(t, srv.URL+"/runs?limit=abc", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
}

func TestGetRun(t *testing.T) {
	srv := newTestServer(t, nil)

	var body runSummary
	status := getJSON(t, srv.URL+"/runs/r2", &body)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "r2", body.ID)
	assert.Equal(t, "2024-03-18T06:00:00Z", body.GeneratedAt)
	assert.Equal(t, []string{"2024-03-18"}, body.Windows)
	assert.Equal(t, 3, body.DetailRows)
	assert.Equal(t, 2, body.Segments[string(domain.SegmentOther)])
	assert.Equal(t, 1, body.Segments[string(domain.SegmentTopNodes)])
	assert.Len(t, body.Warnings, 1)
	assert.Equal(t, "/runs/r2/files/pivot.csv", body.Files["pivot.csv"])
}

func TestGetRun_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	var body map[string]string
	status := getJSON(t, srv.URL+"/runs/missing", &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "run not found", body["error"])
}

func TestGetArtifact(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/runs/r1/files/pivot.csv")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "segment,2024-03-11"))

	var missing map[string]string
	status := getJSON(t, srv.URL+"/runs/r1/files/other.txt", &missing)
	assert.Equal(t, http.StatusNotFound, status)
}

type fakeTotals struct {
	totals map[domain.Segment]uint64
	err    error
}

func (f fakeTotals) SegmentTotals(context.Context, string) (map[domain.Segment]uint64, error) {
	return f.totals, f.err
}

func TestSegmentTotals_FromPivot(t *testing.T) {
	srv := newTestServer(t, nil)

	var body map[string]uint64
	status := getJSON(t, srv.URL+"/runs/r1/segments", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(2), body[string(domain.SegmentOther)])
	assert.Equal(t, uint64(1), body[string(domain.SegmentTopNodes)])
}

func TestSegmentTotals_FromTotaler(t *testing.T) {
	srv := newTestServer(t, fakeTotals{totals: map[domain.Segment]uint64{domain.SegmentZeroContributor: 7}})

	var body map[string]uint64
	status := getJSON(t, srv.URL+"/runs/r1/segments", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]uint64{string(domain.SegmentZeroContributor): 7}, body)
}

func TestSegmentTotals_TotalerFailure(t *testing.T) {
	srv := newTestServer(t, fakeTotals{err: errors.New("connection refused")})

	var body map[string]string
	status := getJSON(t, srv.URL+"/runs/r1/segments", &body)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body["error"])
}
