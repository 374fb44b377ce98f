// Package profitability estimates whether calling reward is profitable for
// an orchestrator given its stake and the network's reward economics.
package profitability

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
	"network-kpi/internal/metrics"
	"network-kpi/internal/subgraph"
)

// ProtocolReader reads protocol state and reward call costs.
type ProtocolReader interface {
	ProtocolAt(ctx context.Context, block int64) (*domain.ProtocolState, error)
	RewardCallCostsETH(ctx context.Context, start, end time.Time) ([]decimal.Decimal, *subgraph.PartialResultWarning, error)
}

// ETHPricer returns the current ETH/USD price.
type ETHPricer interface {
	ETHPriceUSD(ctx context.Context) (float64, error)
}

// TokenPricer returns the mean staking token price over a range.
type TokenPricer interface {
	MeanPriceUSD(ctx context.Context, from, to time.Time) (float64, error)
}

// WindowEconomics holds the per-window inputs of the breakeven calculation.
// Cost and price fields are NaN when unknown.
type WindowEconomics struct {
	Window      domain.WindowLabel
	Protocol    domain.ProtocolState
	TxnCostUSD  float64
	LPTPriceUSD float64
}

// Estimator gathers window economics.
type Estimator struct {
	protocol ProtocolReader
	eth      ETHPricer
	lpt      TokenPricer
	workers  int
	log      *slog.Logger
}

// NewEstimator creates an Estimator.
func NewEstimator(protocol ProtocolReader, eth ETHPricer, lpt TokenPricer, workers int, log *slog.Logger) *Estimator {
	if workers <= 0 {
		workers = 1
	}
	return &Estimator{protocol: protocol, eth: eth, lpt: lpt, workers: workers, log: logger.OrDiscard(log)}
}

// Economics returns the economics of every window. A missing token price is
// filled with the median price across windows. Any protocol, cost or ETH
// price failure fails the whole estimate.
func (e *Estimator) Economics(ctx context.Context, windows []domain.Window) (map[domain.WindowLabel]*WindowEconomics, []*subgraph.PartialResultWarning, error) {
	ethUSD, err := e.eth.ETHPriceUSD(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("eth price: %w", err)
	}

	var mu sync.Mutex
	out := make(map[domain.WindowLabel]*WindowEconomics, len(windows))
	var warnings []*subgraph.PartialResultWarning

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, w := range windows {
		g.Go(func() error {
			state, err := e.protocol.ProtocolAt(gctx, w.EndBlock)
			if err != nil {
				return fmt.Errorf("protocol at %d: %w", w.EndBlock, err)
			}
			costs, warning, err := e.protocol.RewardCallCostsETH(gctx, w.StartTime, w.EndTime)
			if err != nil {
				return fmt.Errorf("reward call costs %s: %w", w.Label().Date(), err)
			}

			price, err := e.lpt.MeanPriceUSD(gctx, w.StartTime, w.EndTime)
			if err != nil {
				e.log.Warn("profitability: token price unavailable", "window", w.Label().Date(), "error", err)
				price = math.NaN()
			}

			econ := &WindowEconomics{
				Window:      w.Label(),
				Protocol:    *state,
				TxnCostUSD:  MedianCostUSD(costs, ethUSD),
				LPTPriceUSD: price,
			}
			mu.Lock()
			out[econ.Window] = econ
			if warning != nil {
				warnings = append(warnings, warning)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	fillMissingPrices(out)
	return out, warnings, nil
}

// MedianCostUSD converts ETH costs to USD and returns their median, NaN for
// no costs.
func MedianCostUSD(costsETH []decimal.Decimal, ethUSD float64) float64 {
	rate := decimal.NewFromFloat(ethUSD)
	usd := make([]float64, 0, len(costsETH))
	for _, c := range costsETH {
		usd = append(usd, c.Mul(rate).InexactFloat64())
	}
	return metrics.Median(usd)
}

func fillMissingPrices(econ map[domain.WindowLabel]*WindowEconomics) {
	var known []float64
	for _, e := range econ {
		if !math.IsNaN(e.LPTPriceUSD) {
			known = append(known, e.LPTPriceUSD)
		}
	}
	fill := metrics.Median(known)
	for _, e := range econ {
		if math.IsNaN(e.LPTPriceUSD) {
			e.LPTPriceUSD = fill
		}
	}
}

// BreakevenSelfStake is the self stake at which reward calls pay for their
// transaction cost:
//
//	txn_cost / lpt_price * total_active_stake / (inflation * total_supply) - delegated_stake * reward_cut
//
// It returns nil when any input is unknown or a divisor is zero.
func BreakevenSelfStake(e *WindowEconomics, delegatedStake, rewardCut float64) *float64 {
	if e == nil {
		return nil
	}
	for _, v := range []float64{e.TxnCostUSD, e.LPTPriceUSD, delegatedStake, rewardCut} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	price := decimal.NewFromFloat(e.LPTPriceUSD)
	issuance := decimal.NewFromFloat(e.Protocol.Inflation).Mul(decimal.NewFromFloat(e.Protocol.TotalSupply))
	if price.IsZero() || issuance.IsZero() {
		return nil
	}

	cost := decimal.NewFromFloat(e.TxnCostUSD).
		Div(price).
		Mul(decimal.NewFromFloat(e.Protocol.TotalActiveStake)).
		Div(issuance)
	breakeven := cost.Sub(decimal.NewFromFloat(delegatedStake).Mul(decimal.NewFromFloat(rewardCut)))

	v := breakeven.InexactFloat64()
	return &v
}

// Profitable reports whether selfStake exceeds the breakeven, nil when the
// breakeven is unknown.
func Profitable(breakeven *float64, selfStake float64) *bool {
	if breakeven == nil {
		return nil
	}
	ok := *breakeven < selfStake
	return &ok
}
