// Package protocol reads orchestrator, fee and reward data from the protocol
// subgraphs of both networks.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
	"network-kpi/internal/subgraph"
)

// Network identifies a protocol deployment.
type Network string

// Supported networks.
const (
	Mainnet  Network = "mainnet"
	Arbitrum Network = "arbitrum"
)

// The protocol moved from mainnet to arbitrum at this L1 block and date.
var (
	ArbitrumMigrationBlock int64 = 14247704
	ArbitrumMigrationDate        = time.Date(2022, 2, 14, 0, 0, 0, 0, time.UTC)
)

// NetworkForBlock returns the network that was live at block.
func NetworkForBlock(block int64) Network {
	if block >= ArbitrumMigrationBlock {
		return Arbitrum
	}
	return Mainnet
}

// NetworkForTime returns the network that was live at t.
func NetworkForTime(t time.Time) Network {
	if t.Before(ArbitrumMigrationDate) {
		return Mainnet
	}
	return Arbitrum
}

// Pager is the subset of subgraph.Paginator used by Source.
type Pager interface {
	Paginate(ctx context.Context, q subgraph.Query, start int) (*subgraph.Result, error)
	Query(ctx context.Context, name, query string) ([]subgraph.Record, error)
}

// Source reads protocol data from the mainnet and arbitrum subgraphs.
type Source struct {
	pagers map[Network]Pager
	log    *slog.Logger
}

// NewSource creates a Source. Either pager may be nil to skip that network.
func NewSource(mainnet, arbitrum Pager, log *slog.Logger) *Source {
	pagers := make(map[Network]Pager, 2)
	if mainnet != nil {
		pagers[Mainnet] = mainnet
	}
	if arbitrum != nil {
		pagers[Arbitrum] = arbitrum
	}
	return &Source{pagers: pagers, log: logger.OrDiscard(log)}
}

// ErrNoNetwork is returned when no subgraph is configured for a network.
var ErrNoNetwork = errors.New("no subgraph configured for network")

// paginateAll runs q on mainnet then arbitrum and concatenates the records.
func (s *Source) paginateAll(ctx context.Context, q subgraph.Query) ([]subgraph.Record, []*subgraph.PartialResultWarning, error) {
	var records []subgraph.Record
	var warnings []*subgraph.PartialResultWarning
	for _, network := range []Network{Mainnet, Arbitrum} {
		pager, ok := s.pagers[network]
		if !ok {
			continue
		}
		result, err := pager.Paginate(ctx, q, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", network, err)
		}
		s.log.Debug("protocol: fetched", "query", q.Name, "network", network, "records", len(result.Records), "pages", result.Pages)
		records = append(records, result.Records...)
		if result.Warning != nil {
			warnings = append(warnings, result.Warning)
		}
	}
	return records, warnings, nil
}

// Entities returns every activated orchestrator across both networks. When an
// id appears more than once the last occurrence wins, so arbitrum overrides mainnet.
func (s *Source) Entities(ctx context.Context) ([]domain.Entity, []*subgraph.PartialResultWarning, error) {
	records, warnings, err := s.paginateAll(ctx, TranscodersQuery)
	if err != nil {
		return nil, nil, err
	}
	return ParseEntities(records), warnings, nil
}

// ParseEntities converts transcoder records into entities.
func ParseEntities(records []subgraph.Record) []domain.Entity {
	all := make([]domain.Entity, 0, len(records))
	for _, r := range records {
		if round, _ := r.Int("activationRound"); round == 0 {
			continue
		}
		all = append(all, parseEntity(r))
	}

	// keep the last occurrence of each id, preserving its position
	seen := make(map[string]bool, len(all))
	kept := make([]domain.Entity, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if seen[all[i].ID] {
			continue
		}
		seen[all[i].ID] = true
		kept = append(kept, all[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

func parseEntity(r subgraph.Record) domain.Entity {
	id := r.String("id")
	activation, _ := r.Int("activationRound")
	e := domain.Entity{
		ID:              id,
		Active:          r.Bool("active"),
		ActivationRound: activation,
		TotalStake:      r.FloatOr("totalStake", 0),
		LifetimeFeesETH: r.FloatOr("totalVolumeETH", 0),
		RewardCut:       r.FloatOr("rewardCut", 0) / 1e6,
		FeeShare:        r.FloatOr("feeShare", 0) / 1e6,
		SelfStake:       r.FloatOr("delegator_bondedAmount", 0),
		TotalDelegators: len(r.List("delegators")),
	}
	for _, p := range r.List("pools") {
		roundID, ok := p.Int("round_id")
		if !ok {
			continue
		}
		pool := domain.RoundPool{
			EntityID:   id,
			RoundID:    roundID,
			TotalStake: p.FloatOr("totalStake", 0),
			Fees:       p.FloatOr("fees", 0),
		}
		pool.StartBlock, _ = p.Int("round_startBlock")
		pool.EndBlock, _ = p.Int("round_endBlock")
		if tokens, ok := p.Float("rewardTokens"); ok {
			pool.RewardTokens = &tokens
		}
		e.Pools = append(e.Pools, pool)
	}
	return e
}

// FeeDays returns the daily fee volume of every orchestrator on both networks.
func (s *Source) FeeDays(ctx context.Context) ([]domain.FeeDay, []*subgraph.PartialResultWarning, error) {
	records, warnings, err := s.paginateAll(ctx, TranscoderDaysQuery)
	if err != nil {
		return nil, nil, err
	}
	return ParseFeeDays(records), warnings, nil
}

// ParseFeeDays converts transcoderDay records into fee observations.
func ParseFeeDays(records []subgraph.Record) []domain.FeeDay {
	days := make([]domain.FeeDay, 0, len(records))
	for _, r := range records {
		date, ok := r.Int("date")
		if !ok {
			continue
		}
		days = append(days, domain.FeeDay{
			EntityID:  r.String("transcoder_id"),
			Date:      time.Unix(date, 0).UTC(),
			VolumeETH: toDecimal(r.Get("volumeETH")),
		})
	}
	return days
}

// RewardCallCostsETH returns the cost in ETH of every reward call with a
// timestamp strictly inside (start, end), read from the network live at start.
func (s *Source) RewardCallCostsETH(ctx context.Context, start, end time.Time) ([]decimal.Decimal, *subgraph.PartialResultWarning, error) {
	network := NetworkForTime(start)
	pager, ok := s.pagers[network]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoNetwork, network)
	}
	result, err := pager.Paginate(ctx, RewardEventsQuery(start.Unix(), end.Unix()), 0)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", network, err)
	}
	return ParseRewardCallCosts(result.Records), result.Warning, nil
}

var weiPerETH = decimal.New(1, 18)

// ParseRewardCallCosts computes gasUsed*gasPrice in ETH for each reward event.
func ParseRewardCallCosts(records []subgraph.Record) []decimal.Decimal {
	costs := make([]decimal.Decimal, 0, len(records))
	for _, r := range records {
		gasUsed := toDecimal(r.Get("transaction_gasUsed"))
		gasPrice := toDecimal(r.Get("transaction_gasPrice"))
		if gasUsed.IsZero() || gasPrice.IsZero() {
			continue
		}
		costs = append(costs, gasUsed.Mul(gasPrice).Div(weiPerETH))
	}
	return costs
}

// ProtocolAt returns the protocol state at block on the network live at that block.
func (s *Source) ProtocolAt(ctx context.Context, block int64) (*domain.ProtocolState, error) {
	network := NetworkForBlock(block)
	pager, ok := s.pagers[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoNetwork, network)
	}
	records, err := pager.Query(ctx, "protocol", ProtocolAtBlockQuery(block))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", network, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no protocol state at block %d", network, block)
	}
	r := records[0]
	state := &domain.ProtocolState{
		Block:            block,
		Inflation:        r.FloatOr("inflation", 0) / 1e9,
		TotalActiveStake: r.FloatOr("totalActiveStake", 0),
		TotalSupply:      r.FloatOr("totalSupply", 0),
	}
	state.NumActiveTranscoders, _ = r.Int("numActiveTranscoders")
	return state, nil
}

func toDecimal(v subgraph.Value) decimal.Decimal {
	d, ok := v.Decimal()
	if !ok {
		return decimal.Zero
	}
	out, err := decimal.NewFromString(d.Text('f'))
	if err != nil {
		return decimal.Zero
	}
	return out
}
