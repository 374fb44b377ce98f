package orchestrator

import (
	"network-kpi/internal/domain"
	"network-kpi/internal/metrics"
	"network-kpi/internal/profitability"
	"network-kpi/internal/sources/pricing"
	"network-kpi/internal/windows"
)

// joinedRow is a detail row with the metric set it is classified from.
type joinedRow struct {
	row    domain.DetailRow
	metric *domain.EntityWindowMetric
}

// join builds one row per (entity, window) with at least one round, score
// or fee observation. Observations of ids outside the entity set are dropped.
func join(entities []domain.Entity, assigner *windows.Assigner, s *streams) []*joinedRow {
	byID := make(map[string]*domain.Entity, len(entities))
	var pools []domain.RoundPool
	for i := range entities {
		byID[entities[i].ID] = &entities[i]
		pools = append(pools, entities[i].Pools...)
	}

	rows := make(map[domain.EntityWindowKey]*joinedRow)
	get := func(k domain.EntityWindowKey) *joinedRow {
		if j, ok := rows[k]; ok {
			return j
		}
		e, ok := byID[k.EntityID]
		if !ok {
			return nil
		}
		j := &joinedRow{row: newRow(e, k, assigner), metric: domain.NewEntityWindowMetric(k)}
		j.metric.Set(domain.MetricTotalDelegators, float64(e.TotalDelegators))
		rows[k] = j
		return j
	}

	for _, rs := range metrics.AggregateRounds(pools, assigner) {
		j := get(rs.Key)
		if j == nil {
			continue
		}
		j.row.RoundIDMin = rs.RoundIDMin
		j.row.RoundIDMax = rs.RoundIDMax
		j.row.NumRounds = rs.NumRounds()
		j.row.RewardCalls = rs.RewardCalls
		j.row.RewardTokens = rs.RewardTokens
		j.row.RoundTotalStake = rs.MeanTotalStake
		j.row.CallRatio = rs.CallRatio()
		j.metric.Merge(rs.Values())
	}

	for _, sc := range s.scores {
		j := get(domain.EntityWindowKey{EntityID: sc.EntityID, Window: sc.Window})
		if j == nil {
			continue
		}
		score := sc.Score
		j.row.RegionalHighScore = &score
		j.row.BestRegion = sc.Region
		j.metric.Set(domain.MetricRegionalHighScore, score)
	}

	for k, values := range metrics.FeeValues(metrics.SumFees(s.fees, assigner)) {
		j := get(k)
		if j == nil {
			continue
		}
		j.row.WeekETHFees = values[domain.MetricWeekETHFees]
		j.metric.Merge(values)
	}

	keys := make([]domain.EntityWindowKey, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	metrics.SortKeys(keys)

	out := make([]*joinedRow, 0, len(keys))
	for _, k := range keys {
		j := rows[k]
		enrich(&j.row, assigner, s)
		out = append(out, j)
	}
	return out
}

func newRow(e *domain.Entity, k domain.EntityWindowKey, assigner *windows.Assigner) domain.DetailRow {
	row := domain.DetailRow{
		EntityID:        k.EntityID,
		Window:          k.Window,
		Active:          e.Active,
		CurrentStake:    e.TotalStake,
		LifetimeFeesETH: e.LifetimeFeesETH,
		RewardCut:       e.RewardCut,
		SelfStake:       e.SelfStake,
		TotalDelegators: e.TotalDelegators,
		NumRounds:       metrics.NumRounds(0, 0),
	}
	if w, ok := assigner.Window(k.Window); ok {
		row.WindowStart = w.StartTime
	}
	return row
}

// enrich fills the optional columns from whichever enrichments succeeded.
func enrich(row *domain.DetailRow, assigner *windows.Assigner, s *streams) {
	if s.pricing != nil {
		if st, ok := s.pricing.stats[row.EntityID]; ok {
			row.ServiceURI = st.ServiceURI
			agg := st.PricePerPixel
			row.PricePerPixelAggregated = &agg
		}
		if w, ok := assigner.Window(row.Window); ok {
			row.PricePerPixelHistory = pricing.MeanInRange(s.pricing.histories[row.EntityID], w.StartTime, w.EndTime)
		}
		row.PricePerPixel = row.PricePerPixelHistory
		if row.PricePerPixel == nil {
			row.PricePerPixel = row.PricePerPixelAggregated
		}
		if s.geo != nil && row.ServiceURI != "" {
			row.Location = s.geo[row.ServiceURI]
		}
	}

	if s.econ != nil {
		row.BreakevenSelfStake = profitability.BreakevenSelfStake(s.econ[row.Window], row.RoundTotalStake, row.RewardCut)
		row.ProfitableLPTCalls = profitability.Profitable(row.BreakevenSelfStake, row.SelfStake)
	}
}
