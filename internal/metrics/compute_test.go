package metrics

import (
	"math"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	s := Summarize([]*float64{f(3), nil, f(1), f(8)})

	if s.Count != 3 {
		t.Errorf("expected count 3, got %d", s.Count)
	}
	if s.Sum != 12 {
		t.Errorf("expected sum 12, got %f", s.Sum)
	}
	if s.Mean != 4 {
		t.Errorf("expected mean 4, got %f", s.Mean)
	}
	if s.Min != 1 || s.Max != 8 {
		t.Errorf("expected min/max 1/8, got %f/%f", s.Min, s.Max)
	}
}

func TestSummarize_AllNull(t *testing.T) {
	s := Summarize([]*float64{nil, nil})

	if s.Count != 0 {
		t.Errorf("expected count 0, got %d", s.Count)
	}
	if s.Sum != 0 {
		t.Errorf("expected sum 0, got %f", s.Sum)
	}
	if !math.IsNaN(s.Mean) {
		t.Errorf("expected NaN mean, got %f", s.Mean)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		values []float64
		want   float64
	}{
		{[]float64{5}, 5},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		if got := Median(tt.values); got != tt.want {
			t.Errorf("Median(%v) = %f, want %f", tt.values, got, tt.want)
		}
	}
	if !math.IsNaN(Median(nil)) {
		t.Error("expected NaN median for no values")
	}
}

func TestNumRounds_NeverZero(t *testing.T) {
	tests := []struct {
		min, max int64
		want     int64
	}{
		{2500, 2500, 1},
		{2500, 2506, 7},
		{0, 0, 1},
		{10, 9, 1},
	}
	for _, tt := range tests {
		if got := NumRounds(tt.min, tt.max); got != tt.want {
			t.Errorf("NumRounds(%d, %d) = %d, want %d", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestCallRatio(t *testing.T) {
	if got := CallRatio(7, 2500, 2506); got != 1 {
		t.Errorf("expected ratio 1, got %f", got)
	}
	if got := CallRatio(1, 2500, 2500); got != 1 {
		t.Errorf("single round: expected ratio 1, got %f", got)
	}
	if got := CallRatio(3, 100, 105); got != 0.5 {
		t.Errorf("expected ratio 0.5, got %f", got)
	}
}
