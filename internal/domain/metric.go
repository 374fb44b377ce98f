package domain

// Metric names used for banding and the detail table.
const (
	MetricRegionalHighScore = "regional_high_score"
	MetricCallRatio         = "call_ratio"
	MetricRoundTotalStake   = "round_total_stake"
	MetricTotalDelegators   = "total_delegators"
	MetricWeekETHFees       = "week_eth_fees"
)

// EntityWindowKey is the aggregation grain.
type EntityWindowKey struct {
	EntityID string
	Window   WindowLabel
}

// EntityWindowMetric maps metric names to values for one (entity, window).
// A metric absent from Values is unknown, which is distinct from zero.
type EntityWindowMetric struct {
	Key    EntityWindowKey
	Values map[string]float64
}

// NewEntityWindowMetric creates an empty metric set for key.
func NewEntityWindowMetric(key EntityWindowKey) *EntityWindowMetric {
	return &EntityWindowMetric{Key: key, Values: make(map[string]float64)}
}

// Set stores a metric value.
func (m *EntityWindowMetric) Set(name string, v float64) {
	m.Values[name] = v
}

// Get returns a metric value and whether it is present.
func (m *EntityWindowMetric) Get(name string) (float64, bool) {
	v, ok := m.Values[name]
	return v, ok
}

// Ptr returns the metric as a pointer, nil when absent.
func (m *EntityWindowMetric) Ptr(name string) *float64 {
	v, ok := m.Values[name]
	if !ok {
		return nil
	}
	return &v
}

// Merge copies values from other into m, overwriting existing names.
func (m *EntityWindowMetric) Merge(values map[string]float64) {
	for k, v := range values {
		m.Values[k] = v
	}
}
