// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram
	StageDuration     *prometheus.HistogramVec

	// Source metrics
	QueryPagesTotal         *prometheus.CounterVec
	PartialResultsTotal     *prometheus.CounterVec
	EnrichmentFailuresTotal *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec

	// Output metrics
	SegmentEntities *prometheus.GaugeVec
	DetailRows      prometheus.Gauge

	// Sink metrics
	SinkWriteDuration *prometheus.HistogramVec
	SinkWriteErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "network_kpi"
	}

	return &Metrics{
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Duration of a full pipeline run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		QueryPagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "query_pages_total",
			Help:      "Total number of paginated query pages fetched",
		}, []string{"query"}),
		PartialResultsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "partial_results_total",
			Help:      "Total number of queries truncated at the offset cap",
		}, []string{"query"}),
		EnrichmentFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "enrichment_failures_total",
			Help:      "Total number of optional enrichment failures",
		}, []string{"source"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "http_request_duration_seconds",
			Help:      "Upstream HTTP request latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"host", "status"}),
		SegmentEntities: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "segment_entities",
			Help:      "Number of entities per segment and window in the last run",
		}, []string{"segment", "window"}),
		DetailRows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "detail_rows",
			Help:      "Number of detail rows produced by the last run",
		}),
		SinkWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_duration_seconds",
			Help:      "Duration of export sink writes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		SinkWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_errors_total",
			Help:      "Total number of export sink write errors",
		}, []string{"sink"}),
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPipelineRun records a finished pipeline run.
func RecordPipelineRun(status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PipelineDuration.Observe(durationSeconds)
}

// RecordStage records the duration of one stage.
func RecordStage(stage string, seconds float64) {
	DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordQueryPage increments the page counter of a query.
func RecordQueryPage(query string) {
	DefaultMetrics.QueryPagesTotal.WithLabelValues(query).Inc()
}

// RecordPartialResult increments the truncated query counter.
func RecordPartialResult(query string) {
	DefaultMetrics.PartialResultsTotal.WithLabelValues(query).Inc()
}

// RecordEnrichmentFailure increments the optional source failure counter.
func RecordEnrichmentFailure(source string) {
	DefaultMetrics.EnrichmentFailuresTotal.WithLabelValues(source).Inc()
}

// RecordHTTPRequest records upstream request latency.
func RecordHTTPRequest(host, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(host, status).Observe(seconds)
}

// SetSegmentEntities sets the entity count of a segment in a window.
func SetSegmentEntities(segment, window string, n int) {
	DefaultMetrics.SegmentEntities.WithLabelValues(segment, window).Set(float64(n))
}

// SetDetailRows sets the number of detail rows of the last run.
func SetDetailRows(n int) {
	DefaultMetrics.DetailRows.Set(float64(n))
}

// RecordSinkWrite records an export sink write.
func RecordSinkWrite(sink string, seconds float64, err error) {
	DefaultMetrics.SinkWriteDuration.WithLabelValues(sink).Observe(seconds)
	if err != nil {
		DefaultMetrics.SinkWriteErrors.WithLabelValues(sink).Inc()
	}
}

// MarkSuccessfulRun sets the last successful run timestamp.
func MarkSuccessfulRun(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
