// Package metrics reduces per-entity observations to per-(entity, window)
// aggregates.
package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"network-kpi/internal/domain"
)

// BlockAssigner labels a ledger block with its window.
type BlockAssigner interface {
	AssignBlock(block int64) domain.WindowLabel
}

// TimeAssigner labels a unix timestamp with its window.
type TimeAssigner interface {
	AssignUnix(sec int64) domain.WindowLabel
}

// GroupBy reduces items grouped by key. value returns nil for a null
// observation, which keeps the group present but uncounted.
func GroupBy[T any](items []T, key func(T) domain.EntityWindowKey, value func(T) *float64) map[domain.EntityWindowKey]Stats {
	groups := make(map[domain.EntityWindowKey][]*float64)
	for _, it := range items {
		k := key(it)
		groups[k] = append(groups[k], value(it))
	}
	out := make(map[domain.EntityWindowKey]Stats, len(groups))
	for k, vs := range groups {
		out[k] = Summarize(vs)
	}
	return out
}

// RoundStats is the reduction of an entity's pool observations in a window.
type RoundStats struct {
	Key domain.EntityWindowKey

	RoundIDMin int64
	RoundIDMax int64
	// RewardCalls counts rounds with a reward observation.
	RewardCalls  int
	RewardTokens float64
	// MeanTotalStake is the mean pool stake across the window's rounds.
	MeanTotalStake float64
}

// NumRounds is the elapsed round count of the window.
func (r RoundStats) NumRounds() int64 {
	return NumRounds(r.RoundIDMin, r.RoundIDMax)
}

// CallRatio is reward calls per elapsed round.
func (r RoundStats) CallRatio() float64 {
	return CallRatio(r.RewardCalls, r.RoundIDMin, r.RoundIDMax)
}

// Values returns the classified round metrics.
func (r RoundStats) Values() map[string]float64 {
	return map[string]float64{
		domain.MetricCallRatio:       r.CallRatio(),
		domain.MetricRoundTotalStake: r.MeanTotalStake,
	}
}

// AggregateRounds groups pools by entity and the window of their round's end
// block. The result is sorted by entity then window.
func AggregateRounds(pools []domain.RoundPool, assign BlockAssigner) []RoundStats {
	key := func(p domain.RoundPool) domain.EntityWindowKey {
		return domain.EntityWindowKey{EntityID: p.EntityID, Window: assign.AssignBlock(p.EndBlock)}
	}
	roundIDs := GroupBy(pools, key, func(p domain.RoundPool) *float64 {
		v := float64(p.RoundID)
		return &v
	})
	rewards := GroupBy(pools, key, func(p domain.RoundPool) *float64 { return p.RewardTokens })
	stakes := GroupBy(pools, key, func(p domain.RoundPool) *float64 {
		v := p.TotalStake
		return &v
	})

	out := make([]RoundStats, 0, len(roundIDs))
	for k, ids := range roundIDs {
		out = append(out, RoundStats{
			Key:            k,
			RoundIDMin:     int64(ids.Min),
			RoundIDMax:     int64(ids.Max),
			RewardCalls:    rewards[k].Count,
			RewardTokens:   rewards[k].Sum,
			MeanTotalStake: stakes[k].Mean,
		})
	}
	sortByKey(out, func(r RoundStats) domain.EntityWindowKey { return r.Key })
	return out
}

// SumFees totals daily fee volume per entity and window of the day.
func SumFees(days []domain.FeeDay, assign TimeAssigner) map[domain.EntityWindowKey]decimal.Decimal {
	out := make(map[domain.EntityWindowKey]decimal.Decimal)
	for _, d := range days {
		k := domain.EntityWindowKey{EntityID: d.EntityID, Window: assign.AssignUnix(d.Date.Unix())}
		out[k] = out[k].Add(d.VolumeETH)
	}
	return out
}

// FeeValues converts fee sums to metric values.
func FeeValues(sums map[domain.EntityWindowKey]decimal.Decimal) map[domain.EntityWindowKey]map[string]float64 {
	out := make(map[domain.EntityWindowKey]map[string]float64, len(sums))
	for k, v := range sums {
		out[k] = map[string]float64{domain.MetricWeekETHFees: v.InexactFloat64()}
	}
	return out
}

// SortKeys returns keys ordered by entity then window.
func SortKeys(keys []domain.EntityWindowKey) {
	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})
}

func sortByKey[T any](items []T, key func(T) domain.EntityWindowKey) {
	sort.Slice(items, func(i, j int) bool {
		return lessKey(key(items[i]), key(items[j]))
	})
}

func lessKey(a, b domain.EntityWindowKey) bool {
	if a.EntityID != b.EntityID {
		return a.EntityID < b.EntityID
	}
	return a.Window < b.Window
}
