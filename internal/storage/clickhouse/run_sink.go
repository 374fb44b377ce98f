package clickhouse

import (
	"context"
	"fmt"

	"network-kpi/internal/domain"
	"network-kpi/internal/storage"
)

// RunSink implements storage.RunSink using ClickHouse.
type RunSink struct {
	conn *Conn
}

// NewRunSink creates a new RunSink.
func NewRunSink(conn *Conn) *RunSink {
	return &RunSink{conn: conn}
}

// Compile-time interface check.
var _ storage.RunSink = (*RunSink)(nil)

// WriteRun batch-inserts the detail rows and pivot cells of run. MergeTree
// does not enforce uniqueness, so an existing run ID is checked first and
// rejected with ErrDuplicateKey.
func (s *RunSink) WriteRun(ctx context.Context, run *domain.Run) error {
	if err := storage.ValidateRun(run); err != nil {
		return err
	}

	exists, err := s.exists(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	if err := s.writeDetail(ctx, run); err != nil {
		return err
	}
	return s.writePivot(ctx, run)
}

func (s *RunSink) writeDetail(ctx context.Context, run *domain.Run) error {
	if len(run.Detail) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO segment_detail (
			run_id, generated_at, entity_id, week_end, active, current_stake, reward_cut,
			self_stake, total_delegators, num_rounds, reward_calls, reward_tokens,
			round_total_stake, call_ratio, regional_high_score, best_region, week_eth_fees,
			score_band, call_ratio_band, stake_band, delegators_band, fees_band, segment,
			price_per_pixel, country, breakeven_self_stake, profitable_lpt_calls
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare detail batch: %w", err)
	}

	for i := range run.Detail {
		r := &run.Detail[i]
		country := ""
		if r.Location != nil {
			country = r.Location.Country
		}
		err := batch.Append(
			run.ID, run.GeneratedAt, r.EntityID, r.Window.Time(), r.Active, r.CurrentStake, r.RewardCut,
			r.SelfStake, uint32(r.TotalDelegators), r.NumRounds, uint32(r.RewardCalls), r.RewardTokens,
			r.RoundTotalStake, r.CallRatio, r.RegionalHighScore, r.BestRegion, r.WeekETHFees,
			string(r.Bands.Score), string(r.Bands.CallRatio), string(r.Bands.Stake),
			string(r.Bands.Delegators), string(r.Bands.Fees), string(r.Segment),
			r.PricePerPixel, country, r.BreakevenSelfStake, r.ProfitableLPTCalls,
		)
		if err != nil {
			return fmt.Errorf("append detail row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send detail batch: %w", err)
	}
	return nil
}

func (s *RunSink) writePivot(ctx context.Context, run *domain.Run) error {
	if len(run.Pivot.Rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO segment_pivot (run_id, generated_at, segment, week_end, entities)
	`)
	if err != nil {
		return fmt.Errorf("prepare pivot batch: %w", err)
	}

	for _, row := range run.Pivot.Rows {
		for i, label := range run.Pivot.Windows {
			if err := batch.Append(run.ID, run.GeneratedAt, string(row.Segment), label.Time(), uint32(row.Counts[i])); err != nil {
				return fmt.Errorf("append pivot cell: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send pivot batch: %w", err)
	}
	return nil
}

func (s *RunSink) exists(ctx context.Context, runID string) (bool, error) {
	var n uint64
	err := s.conn.QueryRow(ctx, `
		SELECT
			(SELECT count() FROM segment_detail WHERE run_id = ?) +
			(SELECT count() FROM segment_pivot WHERE run_id = ?)
	`, runID, runID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SegmentTotals returns the number of detail rows per segment of a run.
func (s *RunSink) SegmentTotals(ctx context.Context, runID string) (map[domain.Segment]uint64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT segment, count() FROM segment_detail WHERE run_id = ? GROUP BY segment
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query segment totals: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Segment]uint64)
	for rows.Next() {
		var seg string
		var n uint64
		if err := rows.Scan(&seg, &n); err != nil {
			return nil, fmt.Errorf("scan segment total: %w", err)
		}
		out[domain.Segment(seg)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}
