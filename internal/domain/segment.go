package domain

// Band is an ordinal classification of a single metric.
type Band string

// Bands, lowest first.
const (
	BandLowest Band = "lowest"
	BandLow    Band = "low"
	BandMid    Band = "mid"
	BandHigh   Band = "high"
)

// In reports whether b is one of bands.
func (b Band) In(bands ...Band) bool {
	for _, x := range bands {
		if b == x {
			return true
		}
	}
	return false
}

// Bands holds the band of every classified metric for one (entity, window).
type Bands struct {
	Score      Band
	CallRatio  Band
	Stake      Band
	Delegators Band
	Fees       Band
}

// Segment is the categorical label derived from Bands.
type Segment string

// Segment labels. SegmentOther is the catch-all default.
const (
	SegmentTopNodes          Segment = "A - Top Nodes"
	SegmentHighPerforming    Segment = "B - High Performing Nodes"
	SegmentMidPerfDelegated  Segment = "C - Mid Perf/0 Delegated Nodes"
	SegmentMidPerfLowStats   Segment = "D - Mid Performing with Low Stats"
	SegmentHighStakeHighCall Segment = "E - High Stake/High Call Nodes"
	SegmentZeroPerfHighStake Segment = "X - 0 Performing w High/Mid Stake Nodes"
	SegmentZeroContributor   Segment = "Z - 0 Contributor Nodes"
	SegmentOther             Segment = "ZZ - Other"
)
