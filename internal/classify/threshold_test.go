package classify

import (
	"math"
	"testing"

	"network-kpi/internal/domain"
)

func fp(v float64) *float64 { return &v }

func TestThresholdTable_Monotonic(t *testing.T) {
	table := ThresholdTable{
		{Band: domain.BandLow, Upper: 10},
		{Band: domain.BandMid, Upper: 50},
		{Band: domain.BandHigh, Upper: math.Inf(1)},
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name string
		x    *float64
		want domain.Band
	}{
		{"below first bound", fp(5), domain.BandLow},
		{"on first bound", fp(10), domain.BandLow},
		{"above first bound", fp(11), domain.BandMid},
		{"large", fp(1000), domain.BandHigh},
		{"zero", fp(0), domain.BandLow},
		{"null", nil, domain.BandLow},
		{"nan", fp(math.NaN()), domain.BandLow},
		{"negative", fp(-1), domain.BandLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Band(tt.x); got != tt.want {
				t.Errorf("Band = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestThresholdTable_AboveAllBounds(t *testing.T) {
	score := DefaultThresholds()[domain.MetricRegionalHighScore]
	if got := score.Band(fp(1.5)); got != domain.BandHigh {
		t.Errorf("expected high above last bound, got %s", got)
	}
}

func TestThresholdTable_Validate(t *testing.T) {
	bad := []ThresholdTable{
		{},
		{{Band: domain.BandLow, Upper: 5}, {Band: domain.BandHigh, Upper: 5}},
		{{Band: domain.BandLow, Upper: -1}},
	}
	for i, table := range bad {
		if err := table.Validate(); err == nil {
			t.Errorf("table %d: expected validation error", i)
		}
	}
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("default thresholds: %v", err)
	}
}

func TestDefaultThresholds_StakeBands(t *testing.T) {
	stake := DefaultThresholds()[domain.MetricRoundTotalStake]
	tests := []struct {
		x    float64
		want domain.Band
	}{
		{0, domain.BandLowest},
		{2499, domain.BandLowest},
		{2499.5, domain.BandLow},
		{2500, domain.BandLow},
		{2501, domain.BandMid},
		{59999, domain.BandMid},
		{60000, domain.BandHigh},
	}
	for _, tt := range tests {
		if got := stake.Band(fp(tt.x)); got != tt.want {
			t.Errorf("stake %v: got %s, want %s", tt.x, got, tt.want)
		}
	}
}

func TestThresholds_Bands_NullScoreVsZeroFill(t *testing.T) {
	th := DefaultThresholds()
	m := domain.NewEntityWindowMetric(domain.EntityWindowKey{EntityID: "0xa"})
	m.Set(domain.MetricRoundTotalStake, 60000)

	b := th.Bands(m)
	if b.Score != domain.BandLowest {
		t.Errorf("null score: expected lowest, got %s", b.Score)
	}
	if b.Stake != domain.BandHigh {
		t.Errorf("expected high stake, got %s", b.Stake)
	}
	// Missing non-score metrics are zero-filled into the lowest band.
	if b.CallRatio != domain.BandLowest || b.Fees != domain.BandLowest || b.Delegators != domain.BandLowest {
		t.Errorf("expected zero-filled metrics in lowest band, got %+v", b)
	}
}
