// Package classify bands continuous metrics with threshold tables and
// derives a segment label from the bands with an ordered rule list.
package classify

import (
	"fmt"
	"math"

	"network-kpi/internal/domain"
)

// Threshold is the inclusive upper bound of one band.
type Threshold struct {
	Band  domain.Band
	Upper float64
}

// ThresholdTable partitions [0, +Inf) into bands. Each band covers
// (previous upper, upper]; the first band also includes 0.
type ThresholdTable []Threshold

// Validate checks that bounds are non-negative and strictly ascending.
func (t ThresholdTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("empty threshold table")
	}
	prev := math.Inf(-1)
	for i, th := range t {
		if th.Upper < 0 || math.IsNaN(th.Upper) {
			return fmt.Errorf("band %s: invalid upper bound %v", th.Band, th.Upper)
		}
		if th.Upper <= prev {
			return fmt.Errorf("band %s at %d: bound %v not above %v", th.Band, i, th.Upper, prev)
		}
		prev = th.Upper
	}
	return nil
}

// Lowest returns the first band.
func (t ThresholdTable) Lowest() domain.Band {
	return t[0].Band
}

// Highest returns the last band.
func (t ThresholdTable) Highest() domain.Band {
	return t[len(t)-1].Band
}

// Band returns the band of x: the first band whose upper bound is >= x.
// Values above every bound get the highest band; nil, NaN and negative
// values get the lowest.
func (t ThresholdTable) Band(x *float64) domain.Band {
	if x == nil || math.IsNaN(*x) || *x < 0 {
		return t.Lowest()
	}
	for _, th := range t {
		if *x <= th.Upper {
			return th.Band
		}
	}
	return t.Highest()
}

// Thresholds holds one table per classified metric.
type Thresholds map[string]ThresholdTable

func table(lowest, low, mid, high float64) ThresholdTable {
	return ThresholdTable{
		{Band: domain.BandLowest, Upper: lowest},
		{Band: domain.BandLow, Upper: low},
		{Band: domain.BandMid, Upper: mid},
		{Band: domain.BandHigh, Upper: high},
	}
}

// DefaultThresholds returns the standard weekly segmentation cut-offs.
func DefaultThresholds() Thresholds {
	inf := math.Inf(1)
	return Thresholds{
		domain.MetricRegionalHighScore: table(0.01, 0.20, 0.63, 1),
		domain.MetricCallRatio:         table(0.01, 0.24, 0.75, 1),
		domain.MetricRoundTotalStake:   table(2499, 2500, 59999, inf),
		domain.MetricTotalDelegators:   table(1, 9, 99, inf),
		domain.MetricWeekETHFees:       table(0.01, 1, 5, inf),
	}
}

// Validate checks every table and that all classified metrics are present.
func (th Thresholds) Validate() error {
	for _, m := range classified {
		t, ok := th[m]
		if !ok {
			return fmt.Errorf("missing threshold table for %s", m)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
	}
	return nil
}

// classified lists the banded metrics. Only the score keeps nulls; the rest
// are zero-filled before banding.
var classified = []string{
	domain.MetricRegionalHighScore,
	domain.MetricCallRatio,
	domain.MetricRoundTotalStake,
	domain.MetricTotalDelegators,
	domain.MetricWeekETHFees,
}

// Bands bands every classified metric of m.
func (th Thresholds) Bands(m *domain.EntityWindowMetric) domain.Bands {
	zeroFilled := func(name string) domain.Band {
		v, ok := m.Get(name)
		if !ok {
			v = 0
		}
		return th[name].Band(&v)
	}
	return domain.Bands{
		Score:      th[domain.MetricRegionalHighScore].Band(m.Ptr(domain.MetricRegionalHighScore)),
		CallRatio:  zeroFilled(domain.MetricCallRatio),
		Stake:      zeroFilled(domain.MetricRoundTotalStake),
		Delegators: zeroFilled(domain.MetricTotalDelegators),
		Fees:       zeroFilled(domain.MetricWeekETHFees),
	}
}
