package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats is the reduction of one group of observations. Count is the number
// of non-null values; Mean, Min and Max are NaN when Count is zero and Sum
// is zero.
type Stats struct {
	Count int
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
}

// Summarize reduces values. Nil entries are nulls: they are not counted and
// do not contribute to any statistic.
func Summarize(values []*float64) Stats {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			present = append(present, *v)
		}
	}
	return SummarizeFloats(present)
}

// SummarizeFloats reduces non-null values.
func SummarizeFloats(values []float64) Stats {
	if len(values) == 0 {
		nan := math.NaN()
		return Stats{Mean: nan, Min: nan, Max: nan}
	}
	return Stats{
		Count: len(values),
		Sum:   floats.Sum(values),
		Mean:  stat.Mean(values, nil),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
}

// Median returns the median of values using linear interpolation between the
// two middle elements, or NaN for no values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MeanOf returns the arithmetic mean of values, or NaN for no values.
func MeanOf(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// NumRounds is the elapsed round count of an observed round range. It is
// never less than 1.
func NumRounds(minRound, maxRound int64) int64 {
	n := maxRound - minRound + 1
	if n < 1 {
		return 1
	}
	return n
}

// CallRatio is reward calls per elapsed round.
func CallRatio(calls int, minRound, maxRound int64) float64 {
	return float64(calls) / float64(NumRounds(minRound, maxRound))
}
