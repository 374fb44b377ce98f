package orchestrator

import "fmt"

// Stage names.
const (
	StageComputeWindows    = "compute_windows"
	StageFetchEntities     = "fetch_entities"
	StageFetchEventStreams = "fetch_event_streams"
	StageAggregateJoin     = "aggregate_join"
	StageClassify          = "classify"
	StagePivot             = "pivot"
)

// Source names used in errors, logs and metrics.
const (
	SourceLedger        = "ledger"
	SourceSubgraph      = "subgraph"
	SourceLeaderboard   = "leaderboard"
	SourcePricing       = "pricing"
	SourcePriceHistory  = "price_history"
	SourceGeo           = "geo"
	SourceProfitability = "profitability"
	SourcePipeline      = "pipeline"
)

// StageError is a fatal failure of a required source.
type StageError struct {
	Stage  string
	Source string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (%s) failed: %v", e.Stage, e.Source, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// EnrichmentFailure is a non-fatal failure of an optional source. The
// columns it would have filled are left null.
type EnrichmentFailure struct {
	Source string
	Err    error
}

func (e EnrichmentFailure) Error() string {
	return fmt.Sprintf("enrichment %s failed: %v", e.Source, e.Err)
}
