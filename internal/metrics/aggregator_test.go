package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network-kpi/internal/domain"
)

// fixedAssigner labels blocks and seconds by integer division.
type fixedAssigner struct {
	width int64
}

func (a fixedAssigner) AssignBlock(b int64) domain.WindowLabel {
	return domain.WindowLabel((b/a.width + 1) * a.width)
}

func (a fixedAssigner) AssignUnix(s int64) domain.WindowLabel {
	return domain.WindowLabel((s/a.width + 1) * a.width)
}

func TestAggregateRounds(t *testing.T) {
	pools := []domain.RoundPool{
		{EntityID: "0xa", RoundID: 10, EndBlock: 110, RewardTokens: f(5), TotalStake: 100},
		{EntityID: "0xa", RoundID: 11, EndBlock: 120, RewardTokens: nil, TotalStake: 200},
		{EntityID: "0xa", RoundID: 12, EndBlock: 130, RewardTokens: f(7), TotalStake: 300},
		{EntityID: "0xa", RoundID: 13, EndBlock: 210, RewardTokens: f(1), TotalStake: 50},
		{EntityID: "0xb", RoundID: 12, EndBlock: 130, RewardTokens: nil, TotalStake: 10},
	}

	got := AggregateRounds(pools, fixedAssigner{width: 100})
	require.Len(t, got, 3)

	a1 := got[0]
	assert.Equal(t, domain.EntityWindowKey{EntityID: "0xa", Window: 200}, a1.Key)
	assert.Equal(t, int64(10), a1.RoundIDMin)
	assert.Equal(t, int64(12), a1.RoundIDMax)
	assert.Equal(t, 2, a1.RewardCalls)
	assert.Equal(t, 12.0, a1.RewardTokens)
	assert.Equal(t, 200.0, a1.MeanTotalStake)
	assert.Equal(t, int64(3), a1.NumRounds())
	assert.InDelta(t, 2.0/3.0, a1.CallRatio(), 1e-12)

	a2 := got[1]
	assert.Equal(t, domain.EntityWindowKey{EntityID: "0xa", Window: 300}, a2.Key)
	assert.Equal(t, 1.0, a2.CallRatio())

	// A group with only null rewards is present with zero calls.
	b := got[2]
	assert.Equal(t, "0xb", b.Key.EntityID)
	assert.Equal(t, 0, b.RewardCalls)
	assert.Equal(t, 0.0, b.CallRatio())
	assert.Equal(t, 10.0, b.Values()[domain.MetricRoundTotalStake])
}

func TestSumFees(t *testing.T) {
	day := func(id string, sec int64, v string) domain.FeeDay {
		return domain.FeeDay{EntityID: id, Date: time.Unix(sec, 0), VolumeETH: decimal.RequireFromString(v)}
	}
	days := []domain.FeeDay{
		day("0xa", 10, "0.1"),
		day("0xa", 20, "0.2"),
		day("0xa", 150, "1"),
		day("0xb", 30, "0"),
	}

	sums := SumFees(days, fixedAssigner{width: 100})
	require.Len(t, sums, 3)
	assert.True(t, sums[domain.EntityWindowKey{EntityID: "0xa", Window: 100}].Equal(decimal.RequireFromString("0.3")))
	assert.True(t, sums[domain.EntityWindowKey{EntityID: "0xa", Window: 200}].Equal(decimal.NewFromInt(1)))

	values := FeeValues(sums)
	assert.Equal(t, 0.3, values[domain.EntityWindowKey{EntityID: "0xa", Window: 100}][domain.MetricWeekETHFees])
	assert.Equal(t, 0.0, values[domain.EntityWindowKey{EntityID: "0xb", Window: 100}][domain.MetricWeekETHFees])
}

func TestGroupBy_KeepsEmptyGroups(t *testing.T) {
	type obs struct {
		id string
		v  *float64
	}
	items := []obs{{"x", nil}, {"y", f(2)}, {"y", f(4)}}
	got := GroupBy(items,
		func(o obs) domain.EntityWindowKey { return domain.EntityWindowKey{EntityID: o.id} },
		func(o obs) *float64 { return o.v })

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[domain.EntityWindowKey{EntityID: "x"}].Count)
	assert.Equal(t, 3.0, got[domain.EntityWindowKey{EntityID: "y"}].Mean)
}

func TestSortKeys(t *testing.T) {
	keys := []domain.EntityWindowKey{{EntityID: "0xb", Window: 1}, {EntityID: "0xa", Window: 2}, {EntityID: "0xa", Window: 1}}
	SortKeys(keys)
	assert.Equal(t, []domain.EntityWindowKey{{EntityID: "0xa", Window: 1}, {EntityID: "0xa", Window: 2}, {EntityID: "0xb", Window: 1}}, keys)
}
