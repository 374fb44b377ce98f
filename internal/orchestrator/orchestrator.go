// Package orchestrator runs the weekly segmentation pipeline.
// Flow: compute windows → fetch entities → fetch event streams →
// aggregate and join → classify → pivot
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"network-kpi/internal/classify"
	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
	"network-kpi/internal/observability"
	"network-kpi/internal/profitability"
	"network-kpi/internal/subgraph"
	"network-kpi/internal/windows"
)

// WindowSource computes the run's windows.
type WindowSource interface {
	Compute(ctx context.Context, n int) ([]domain.Window, error)
}

// EntitySource reads orchestrators and their daily fees.
type EntitySource interface {
	Entities(ctx context.Context) ([]domain.Entity, []*subgraph.PartialResultWarning, error)
	FeeDays(ctx context.Context) ([]domain.FeeDay, []*subgraph.PartialResultWarning, error)
}

// ScoreSource reads regional performance scores.
type ScoreSource interface {
	BestRegions(ctx context.Context, windows []domain.Window) ([]domain.RegionScore, error)
}

// PricingSource reads advertised prices.
type PricingSource interface {
	OrchestratorStats(ctx context.Context) ([]domain.OrchestratorStats, error)
	PriceHistories(ctx context.Context, ids []string) (map[string][]domain.PricePoint, error)
}

// GeoSource locates service URIs.
type GeoSource interface {
	LocateAll(ctx context.Context, uris []string) (map[string]*domain.Location, error)
}

// EconomicsSource estimates per-window reward economics.
type EconomicsSource interface {
	Economics(ctx context.Context, windows []domain.Window) (map[domain.WindowLabel]*profitability.WindowEconomics, []*subgraph.PartialResultWarning, error)
}

// Options for creating Orchestrator.
type Options struct {
	NumWindows int

	// Required sources
	Windows  WindowSource
	Entities EntitySource
	Scores   ScoreSource

	// Optional enrichments, skipped when nil
	Pricing   PricingSource
	Geo       GeoSource
	Economics EconomicsSource

	Thresholds classify.Thresholds
	Classifier *classify.Classifier

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Orchestrator coordinates one pipeline run.
type Orchestrator struct {
	opts  Options
	clock clockwork.Clock
	log   *slog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Thresholds == nil {
		opts.Thresholds = classify.DefaultThresholds()
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.DefaultClassifier()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{opts: opts, clock: clock, log: logger.OrDiscard(opts.Logger)}
}

// RunResult contains the outputs of one run.
type RunResult struct {
	RunID       string
	GeneratedAt time.Time
	Windows     []domain.Window
	Detail      []domain.DetailRow
	Pivot       *domain.PivotTable

	// Warnings are truncated queries whose data was used as-is.
	Warnings []*subgraph.PartialResultWarning
	// Enrichments lists optional sources that failed.
	Enrichments []EnrichmentFailure
}

// Complete reports whether every query was exhaustive and every enrichment succeeded.
func (r *RunResult) Complete() bool {
	return len(r.Warnings) == 0 && len(r.Enrichments) == 0
}

// streams holds everything fetched in the event stream stage.
type streams struct {
	scores  []domain.RegionScore
	fees    []domain.FeeDay
	pricing *pricingData
	geo     map[string]*domain.Location
	econ    map[domain.WindowLabel]*profitability.WindowEconomics
}

type pricingData struct {
	stats     map[string]domain.OrchestratorStats
	histories map[string][]domain.PricePoint
}

// Run executes the pipeline. A failure of a required source returns a
// *StageError; optional source failures are reported in the result.
func (o *Orchestrator) Run(ctx context.Context) (result *RunResult, err error) {
	started := o.clock.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		observability.RecordPipelineRun(status, o.clock.Since(started).Seconds())
	}()

	result = &RunResult{
		RunID:       started.UTC().Format("20060102T150405Z"),
		GeneratedAt: started.UTC(),
	}

	// Stage 1: windows
	var assigner *windows.Assigner
	err = o.stage(StageComputeWindows, SourceLedger, func() error {
		ws, err := o.opts.Windows.Compute(ctx, o.opts.NumWindows)
		if err != nil {
			return err
		}
		result.Windows = ws
		assigner = windows.NewAssigner(ws, started)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 2: entities
	var entities []domain.Entity
	err = o.stage(StageFetchEntities, SourceSubgraph, func() error {
		es, warnings, err := o.opts.Entities.Entities(ctx)
		if err != nil {
			return err
		}
		entities = es
		result.Warnings = append(result.Warnings, warnings...)
		o.log.Info("orchestrator: fetched entities", "count", len(entities))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 3: event streams and enrichments
	s, err := o.fetchStreams(ctx, result, entities)
	if err != nil {
		return nil, err
	}

	// Stage 4: aggregate and join
	var joined []*joinedRow
	err = o.stage(StageAggregateJoin, SourcePipeline, func() error {
		joined = join(entities, assigner, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 5: classify
	err = o.stage(StageClassify, SourcePipeline, func() error {
		result.Detail = make([]domain.DetailRow, 0, len(joined))
		for _, j := range joined {
			j.row.Bands, j.row.Segment = o.opts.Classifier.Apply(o.opts.Thresholds, j.metric)
			result.Detail = append(result.Detail, j.row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 6: pivot
	err = o.stage(StagePivot, SourcePipeline, func() error {
		result.Pivot = Pivot(result.Detail)
		return CheckConsistency(result.Pivot, result.Detail)
	})
	if err != nil {
		return nil, err
	}

	o.report(result)
	observability.MarkSuccessfulRun(o.clock.Now().Unix())
	return result, nil
}

// stage times fn and wraps its error as a StageError.
func (o *Orchestrator) stage(name, source string, fn func() error) error {
	start := time.Now()
	o.log.Debug("orchestrator: stage started", "stage", name)
	err := fn()
	observability.RecordStage(name, time.Since(start).Seconds())
	if err != nil {
		o.log.Error("orchestrator: stage failed", "stage", name, "source", source, "error", err)
		var se *StageError
		if errors.As(err, &se) {
			return se
		}
		return &StageError{Stage: name, Source: source, Err: err}
	}
	return nil
}

// fetchStreams reads the required streams and optional enrichments
// concurrently. Only required stream errors are returned.
func (o *Orchestrator) fetchStreams(ctx context.Context, result *RunResult, entities []domain.Entity) (*streams, error) {
	s := &streams{}
	var mu sync.Mutex
	fail := func(source string, err error) {
		o.log.Warn("orchestrator: enrichment failed, columns left null", "source", source, "error", err)
		observability.RecordEnrichmentFailure(source)
		mu.Lock()
		result.Enrichments = append(result.Enrichments, EnrichmentFailure{Source: source, Err: err})
		mu.Unlock()
	}

	err := o.stage(StageFetchEventStreams, SourcePipeline, func() error {
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			scores, err := o.opts.Scores.BestRegions(gctx, result.Windows)
			if err != nil {
				return &StageError{Stage: StageFetchEventStreams, Source: SourceLeaderboard, Err: err}
			}
			s.scores = scores
			return nil
		})

		g.Go(func() error {
			fees, warnings, err := o.opts.Entities.FeeDays(gctx)
			if err != nil {
				return &StageError{Stage: StageFetchEventStreams, Source: SourceSubgraph, Err: err}
			}
			s.fees = fees
			mu.Lock()
			result.Warnings = append(result.Warnings, warnings...)
			mu.Unlock()
			return nil
		})

		if o.opts.Pricing != nil {
			g.Go(func() error {
				stats, err := o.opts.Pricing.OrchestratorStats(gctx)
				if err != nil {
					fail(SourcePricing, err)
					return nil
				}
				histories, err := o.opts.Pricing.PriceHistories(gctx, entityIDs(entities))
				if err != nil {
					fail(SourcePriceHistory, err)
				}
				p := newPricingData(stats, histories)
				s.pricing = p
				if o.opts.Geo != nil {
					located, err := o.opts.Geo.LocateAll(gctx, serviceURIs(p))
					if err != nil {
						fail(SourceGeo, err)
					}
					s.geo = located
				}
				return nil
			})
		} else if o.opts.Geo != nil {
			o.log.Debug("orchestrator: geo enrichment needs pricing service URIs, skipping")
		}

		if o.opts.Economics != nil {
			g.Go(func() error {
				econ, warnings, err := o.opts.Economics.Economics(gctx, result.Windows)
				if err != nil {
					fail(SourceProfitability, err)
					return nil
				}
				s.econ = econ
				mu.Lock()
				result.Warnings = append(result.Warnings, warnings...)
				mu.Unlock()
				return nil
			})
		}

		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func entityIDs(entities []domain.Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	return ids
}

// newPricingData indexes stats by entity. histories may be partial or nil.
func newPricingData(stats []domain.OrchestratorStats, histories map[string][]domain.PricePoint) *pricingData {
	p := &pricingData{stats: make(map[string]domain.OrchestratorStats, len(stats)), histories: histories}
	for _, st := range stats {
		p.stats[st.EntityID] = st
	}
	return p
}

func serviceURIs(p *pricingData) []string {
	uris := make([]string, 0, len(p.stats))
	for _, st := range p.stats {
		if st.ServiceURI != "" {
			uris = append(uris, st.ServiceURI)
		}
	}
	return uris
}

// report logs the run summary and publishes segment gauges.
func (o *Orchestrator) report(result *RunResult) {
	for _, w := range result.Warnings {
		o.log.Warn("orchestrator: partial result used", "query", w.Query, "offset", w.Offset, "records", w.Records)
	}
	for i, label := range result.Pivot.Windows {
		for _, row := range result.Pivot.Rows {
			observability.SetSegmentEntities(string(row.Segment), label.Date(), row.Counts[i])
		}
	}
	observability.SetDetailRows(len(result.Detail))
	o.log.Info("orchestrator: run completed",
		"run_id", result.RunID,
		"windows", len(result.Windows),
		"detail_rows", len(result.Detail),
		"segments", len(result.Pivot.Rows),
		"partial_results", len(result.Warnings),
		"enrichment_failures", len(result.Enrichments),
	)
}

// Run converts the result into the exported run record.
func (r *RunResult) Run() *domain.Run {
	run := &domain.Run{
		ID:          r.RunID,
		GeneratedAt: r.GeneratedAt,
		Windows:     r.Windows,
		Detail:      r.Detail,
		Pivot:       r.Pivot,
		Complete:    r.Complete(),
	}
	for _, w := range r.Warnings {
		run.Warnings = append(run.Warnings, w.Error())
	}
	for _, e := range r.Enrichments {
		run.Warnings = append(run.Warnings, e.Error())
	}
	return run
}
