package classify

import (
	"network-kpi/internal/domain"
)

// Predicate matches a combination of bands.
type Predicate func(b domain.Bands) bool

// Rule assigns Segment when Match holds.
type Rule struct {
	Segment domain.Segment
	Match   Predicate
}

// Classifier evaluates rules in order; the first match wins and Default
// applies when none match.
type Classifier struct {
	Rules   []Rule
	Default domain.Segment
}

// Classify returns the segment of b.
func (c *Classifier) Classify(b domain.Bands) domain.Segment {
	for _, r := range c.Rules {
		if r.Match(b) {
			return r.Segment
		}
	}
	return c.Default
}

// Apply bands m with th and classifies the bands.
func (c *Classifier) Apply(th Thresholds, m *domain.EntityWindowMetric) (domain.Bands, domain.Segment) {
	b := th.Bands(m)
	return b, c.Classify(b)
}

// Segments returns every label the classifier can produce, in rule order
// followed by the default.
func (c *Classifier) Segments() []domain.Segment {
	out := make([]domain.Segment, 0, len(c.Rules)+1)
	for _, r := range c.Rules {
		out = append(out, r.Segment)
	}
	return append(out, c.Default)
}

var (
	low     = []domain.Band{domain.BandLow, domain.BandLowest}
	notHigh = []domain.Band{domain.BandLow, domain.BandLowest, domain.BandMid}
	midOrUp = []domain.Band{domain.BandMid, domain.BandHigh}
)

// DefaultClassifier returns the weekly segmentation rules. Rules overlap
// (E shadows part of X); their order decides those entities.
func DefaultClassifier() *Classifier {
	return &Classifier{
		Rules: []Rule{
			{domain.SegmentTopNodes, func(b domain.Bands) bool {
				return b.Score == domain.BandHigh && b.Stake == domain.BandHigh
			}},
			{domain.SegmentHighPerforming, func(b domain.Bands) bool {
				return b.Score == domain.BandHigh && b.Stake.In(notHigh...)
			}},
			{domain.SegmentMidPerfDelegated, func(b domain.Bands) bool {
				return b.Score == domain.BandMid && b.Stake == domain.BandHigh
			}},
			{domain.SegmentMidPerfLowStats, func(b domain.Bands) bool {
				return b.Score == domain.BandMid && b.Stake != domain.BandHigh
			}},
			{domain.SegmentHighStakeHighCall, func(b domain.Bands) bool {
				return b.Score.In(notHigh...) && b.Stake.In(midOrUp...) && b.CallRatio.In(midOrUp...)
			}},
			{domain.SegmentZeroPerfHighStake, func(b domain.Bands) bool {
				return b.Score == domain.BandLowest && b.Stake.In(midOrUp...) && b.CallRatio.In(midOrUp...)
			}},
			{domain.SegmentZeroContributor, func(b domain.Bands) bool {
				return b.Score.In(low...) && b.Stake.In(low...) && b.CallRatio.In(low...)
			}},
		},
		Default: domain.SegmentOther,
	}
}
