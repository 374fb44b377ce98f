package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	RecordQueryPage("transcoders")
	RecordQueryPage("transcoders")
	if got := testutil.ToFloat64(DefaultMetrics.QueryPagesTotal.WithLabelValues("transcoders")); got < 2 {
		t.Errorf("expected at least 2 pages, got %v", got)
	}

	RecordPartialResult("transcoderDays")
	if got := testutil.ToFloat64(DefaultMetrics.PartialResultsTotal.WithLabelValues("transcoderDays")); got < 1 {
		t.Errorf("expected partial result recorded, got %v", got)
	}

	SetSegmentEntities("A - Top Nodes", "2024-01-08", 7)
	if got := testutil.ToFloat64(DefaultMetrics.SegmentEntities.WithLabelValues("A - Top Nodes", "2024-01-08")); got != 7 {
		t.Errorf("expected gauge 7, got %v", got)
	}

	before := testutil.ToFloat64(DefaultMetrics.SinkWriteErrors.WithLabelValues("postgres"))
	RecordSinkWrite("postgres", 0.1, errors.New("boom"))
	RecordSinkWrite("postgres", 0.1, nil)
	if got := testutil.ToFloat64(DefaultMetrics.SinkWriteErrors.WithLabelValues("postgres")); got != before+1 {
		t.Errorf("expected one sink error, got %v", got-before)
	}
}

func TestHandler(t *testing.T) {
	RecordPipelineRun("success", 1.5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "network_kpi_pipeline_runs_total") {
		t.Error("expected pipeline runs metric in output")
	}
}
