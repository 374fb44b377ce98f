package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"network-kpi/internal/domain"
	"network-kpi/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

var detailColumns = []string{
	"run_id", "entity_id", "week_end", "week_start", "active", "current_stake", "lifetime_fees_eth",
	"reward_cut", "self_stake", "total_delegators", "round_id_min", "round_id_max", "num_rounds",
	"reward_calls", "reward_tokens", "round_total_stake", "call_ratio", "regional_high_score",
	"best_region", "week_eth_fees", "score_band", "call_ratio_band", "stake_band", "delegators_band",
	"fees_band", "segment", "service_uri", "price_per_pixel_aggregated", "price_per_pixel_history",
	"price_per_pixel", "location", "breakeven_self_stake", "profitable_lpt_calls",
}

// WriteRun stores the run header, windows, detail and pivot in one
// transaction. Returns ErrDuplicateKey if the run ID exists.
func (s *RunStore) WriteRun(ctx context.Context, run *domain.Run) error {
	if err := storage.ValidateRun(run); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO segment_runs (run_id, generated_at, complete, warnings)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.GeneratedAt, run.Complete, warnings)
	if err != nil {
		return wrapErr("insert run", err)
	}

	for _, w := range run.Windows {
		_, err := tx.Exec(ctx, `
			INSERT INTO segment_windows (run_id, week_end, week_start, start_block, end_block)
			VALUES ($1, $2, $3, $4, $5)
		`, run.ID, int64(w.Label()), w.StartTime.Unix(), w.StartBlock, w.EndBlock)
		if err != nil {
			return fmt.Errorf("insert window: %w", err)
		}
	}

	rows := make([][]any, 0, len(run.Detail))
	for i := range run.Detail {
		values, err := detailValues(run.ID, &run.Detail[i])
		if err != nil {
			return err
		}
		rows = append(rows, values)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"segment_detail"}, detailColumns, pgx.CopyFromRows(rows)); err != nil {
		return wrapErr("copy detail rows", err)
	}

	batch := &pgx.Batch{}
	for _, row := range run.Pivot.Rows {
		for i, label := range run.Pivot.Windows {
			batch.Queue(`
				INSERT INTO segment_pivot (run_id, segment, week_end, entities)
				VALUES ($1, $2, $3, $4)
			`, run.ID, string(row.Segment), int64(label), row.Counts[i])
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return wrapErr("insert pivot", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func detailValues(runID string, r *domain.DetailRow) ([]any, error) {
	var weekStart *time.Time
	if !r.WindowStart.IsZero() {
		ws := r.WindowStart
		weekStart = &ws
	}
	var location []byte
	if r.Location != nil {
		b, err := json.Marshal(r.Location)
		if err != nil {
			return nil, fmt.Errorf("marshal location: %w", err)
		}
		location = b
	}
	return []any{
		runID, r.EntityID, int64(r.Window), weekStart, r.Active, r.CurrentStake, r.LifetimeFeesETH,
		r.RewardCut, r.SelfStake, int32(r.TotalDelegators), r.RoundIDMin, r.RoundIDMax, r.NumRounds,
		int32(r.RewardCalls), r.RewardTokens, r.RoundTotalStake, r.CallRatio, r.RegionalHighScore,
		r.BestRegion, r.WeekETHFees, string(r.Bands.Score), string(r.Bands.CallRatio), string(r.Bands.Stake),
		string(r.Bands.Delegators), string(r.Bands.Fees), string(r.Segment), r.ServiceURI,
		r.PricePerPixelAggregated, r.PricePerPixelHistory, r.PricePerPixel, location,
		r.BreakevenSelfStake, r.ProfitableLPTCalls,
	}, nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	run := &domain.Run{ID: id}
	err := s.pool.QueryRow(ctx, `
		SELECT generated_at, complete, warnings FROM segment_runs WHERE run_id = $1
	`, id).Scan(&run.GeneratedAt, &run.Complete, &run.Warnings)
	if err != nil {
		return nil, wrapErr("get run", err)
	}
	run.GeneratedAt = run.GeneratedAt.UTC()
	if len(run.Warnings) == 0 {
		run.Warnings = nil
	}

	if run.Windows, err = s.getWindows(ctx, id); err != nil {
		return nil, err
	}
	if run.Detail, err = s.getDetail(ctx, id); err != nil {
		return nil, err
	}
	if run.Pivot, err = s.getPivot(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *RunStore) getWindows(ctx context.Context, id string) ([]domain.Window, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT week_start, week_end, start_block, end_block
		FROM segment_windows
		WHERE run_id = $1
		ORDER BY week_end ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	var out []domain.Window
	for rows.Next() {
		var start, end int64
		var w domain.Window
		if err := rows.Scan(&start, &end, &w.StartBlock, &w.EndBlock); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		w.StartTime = time.Unix(start, 0).UTC()
		w.EndTime = time.Unix(end, 0).UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *RunStore) getDetail(ctx context.Context, id string) ([]domain.DetailRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id, week_end, week_start, active, current_stake, lifetime_fees_eth,
			reward_cut, self_stake, total_delegators, round_id_min, round_id_max, num_rounds,
			reward_calls, reward_tokens, round_total_stake, call_ratio, regional_high_score,
			best_region, week_eth_fees, score_band, call_ratio_band, stake_band, delegators_band,
			fees_band, segment, service_uri, price_per_pixel_aggregated, price_per_pixel_history,
			price_per_pixel, location, breakeven_self_stake, profitable_lpt_calls
		FROM segment_detail
		WHERE run_id = $1
		ORDER BY entity_id ASC, week_end ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query detail: %w", err)
	}
	defer rows.Close()

	var out []domain.DetailRow
	for rows.Next() {
		r, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanDetail(row pgx.Row) (domain.DetailRow, error) {
	var (
		r                                       domain.DetailRow
		window                                  int64
		weekStart                               *time.Time
		delegators, calls                       int32
		score, callRatio, stake, dlg, fees, seg string
		location                                []byte
	)
	err := row.Scan(
		&r.EntityID, &window, &weekStart, &r.Active, &r.CurrentStake, &r.LifetimeFeesETH,
		&r.RewardCut, &r.SelfStake, &delegators, &r.RoundIDMin, &r.RoundIDMax, &r.NumRounds,
		&calls, &r.RewardTokens, &r.RoundTotalStake, &r.CallRatio, &r.RegionalHighScore,
		&r.BestRegion, &r.WeekETHFees, &score, &callRatio, &stake, &dlg,
		&fees, &seg, &r.ServiceURI, &r.PricePerPixelAggregated, &r.PricePerPixelHistory,
		&r.PricePerPixel, &location, &r.BreakevenSelfStake, &r.ProfitableLPTCalls,
	)
	if err != nil {
		return r, fmt.Errorf("scan detail row: %w", err)
	}
	r.Window = domain.WindowLabel(window)
	if weekStart != nil {
		r.WindowStart = weekStart.UTC()
	}
	r.TotalDelegators = int(delegators)
	r.RewardCalls = int(calls)
	r.Bands = domain.Bands{
		Score:      domain.Band(score),
		CallRatio:  domain.Band(callRatio),
		Stake:      domain.Band(stake),
		Delegators: domain.Band(dlg),
		Fees:       domain.Band(fees),
	}
	r.Segment = domain.Segment(seg)
	if location != nil {
		r.Location = &domain.Location{}
		if err := json.Unmarshal(location, r.Location); err != nil {
			return r, fmt.Errorf("unmarshal location: %w", err)
		}
	}
	return r, nil
}

func (s *RunStore) getPivot(ctx context.Context, id string) (*domain.PivotTable, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT segment, week_end, entities FROM segment_pivot WHERE run_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query pivot: %w", err)
	}
	defer rows.Close()

	cells := make(map[domain.Segment]map[domain.WindowLabel]int)
	windowSet := make(map[domain.WindowLabel]struct{})
	for rows.Next() {
		var seg string
		var week int64
		var n int32
		if err := rows.Scan(&seg, &week, &n); err != nil {
			return nil, fmt.Errorf("scan pivot cell: %w", err)
		}
		label := domain.WindowLabel(week)
		if cells[domain.Segment(seg)] == nil {
			cells[domain.Segment(seg)] = make(map[domain.WindowLabel]int)
		}
		cells[domain.Segment(seg)][label] = int(n)
		windowSet[label] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	p := &domain.PivotTable{}
	for w := range windowSet {
		p.Windows = append(p.Windows, w)
	}
	sort.Slice(p.Windows, func(i, j int) bool { return p.Windows[i] < p.Windows[j] })
	segments := make([]domain.Segment, 0, len(cells))
	for seg := range cells {
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i] < segments[j] })
	for _, seg := range segments {
		row := domain.PivotRow{Segment: seg, Counts: make([]int, len(p.Windows))}
		for i, w := range p.Windows {
			row.Counts[i] = cells[seg][w]
		}
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}

// ListRunIDs returns stored run IDs, newest first. A limit of zero or less
// returns every run.
func (s *RunStore) ListRunIDs(ctx context.Context, limit int) ([]string, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id FROM segment_runs ORDER BY generated_at DESC, run_id DESC LIMIT $1
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect run ids: %w", err)
	}
	return ids, nil
}
