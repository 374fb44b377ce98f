package domain

import "time"

// DetailRow is one unpivoted (entity, window) record of a run.
type DetailRow struct {
	EntityID    string
	Window      WindowLabel
	WindowStart time.Time // zero for the fallback window

	// Snapshot attributes.
	Active          bool
	CurrentStake    float64
	LifetimeFeesETH float64
	RewardCut       float64
	SelfStake       float64
	TotalDelegators int

	// Round statistics.
	RoundIDMin      int64
	RoundIDMax      int64
	NumRounds       int64
	RewardCalls     int
	RewardTokens    float64
	RoundTotalStake float64
	CallRatio       float64

	// Regional performance. RegionalHighScore is nil when unscored.
	RegionalHighScore *float64
	BestRegion        string

	WeekETHFees float64

	Bands   Bands
	Segment Segment

	// Optional enrichments, nil when the source failed or had no data.
	ServiceURI              string
	PricePerPixelAggregated *float64
	PricePerPixelHistory    *float64
	PricePerPixel           *float64
	Location                *Location
	BreakevenSelfStake      *float64
	ProfitableLPTCalls      *bool
}

// Key returns the aggregation grain of the row.
func (r *DetailRow) Key() EntityWindowKey {
	return EntityWindowKey{EntityID: r.EntityID, Window: r.Window}
}

// PivotRow holds the entity counts of one segment, aligned to PivotTable.Windows.
type PivotRow struct {
	Segment Segment
	Counts  []int
}

// PivotTable is the segment x window summary of a run.
type PivotTable struct {
	Windows []WindowLabel
	Rows    []PivotRow
}

// Total returns the sum of all segment counts for window column i.
func (p *PivotTable) Total(i int) int {
	n := 0
	for _, r := range p.Rows {
		n += r.Counts[i]
	}
	return n
}

// Run is the exported output of one pipeline run.
type Run struct {
	ID          string
	GeneratedAt time.Time
	Windows     []Window
	Detail      []DetailRow
	Pivot       *PivotTable
	// Warnings lists truncated queries and failed enrichments.
	Warnings []string
	Complete bool
}
