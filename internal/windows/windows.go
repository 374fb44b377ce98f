// Package windows aligns fixed Monday-anchored weeks to ledger block ranges
// and assigns block- or time-indexed observations to those weeks.
package windows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"network-kpi/internal/chain"
	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
)

// Week is the window length.
const Week = 7 * 24 * time.Hour

// ErrNoWindows is returned when fewer than one window is requested.
var ErrNoWindows = errors.New("at least one window is required")

// LastMonday returns midnight UTC of the most recent Monday at or before now.
func LastMonday(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(midnight.Weekday()) + 6) % 7 // days since Monday
	return midnight.AddDate(0, 0, -offset)
}

// MondayInstants returns n+1 ascending Monday midnights ending at the most
// recent one, enough boundaries for n consecutive windows.
func MondayInstants(now time.Time, n int) []time.Time {
	anchor := LastMonday(now)
	instants := make([]time.Time, n+1)
	for i := 0; i <= n; i++ {
		instants[n-i] = anchor.AddDate(0, 0, -7*i)
	}
	return instants
}

// Build pairs consecutive (instant, block) boundaries into windows.
func Build(instants []time.Time, blocks []int64) ([]domain.Window, error) {
	if len(instants) != len(blocks) {
		return nil, fmt.Errorf("have %d instants but %d blocks", len(instants), len(blocks))
	}
	if len(instants) < 2 {
		return nil, ErrNoWindows
	}
	out := make([]domain.Window, 0, len(instants)-1)
	for i := 0; i+1 < len(instants); i++ {
		if !instants[i].Before(instants[i+1]) {
			return nil, fmt.Errorf("instants not ascending at %d", i)
		}
		if blocks[i] > blocks[i+1] {
			return nil, fmt.Errorf("block %d at %s is after block %d at %s",
				blocks[i], instants[i].Format(time.DateOnly), blocks[i+1], instants[i+1].Format(time.DateOnly))
		}
		out = append(out, domain.Window{
			StartTime:  instants[i],
			EndTime:    instants[i+1],
			StartBlock: blocks[i],
			EndBlock:   blocks[i+1],
		})
	}
	return out, nil
}

// AlignerOptions configures an Aligner.
type AlignerOptions struct {
	Lookup chain.BlockLookup
	// Delay is the minimum spacing between lookups. Zero disables pacing.
	Delay time.Duration
	// Workers bounds concurrent lookups.
	Workers int
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// Aligner computes block-aligned weekly windows.
type Aligner struct {
	lookup  chain.BlockLookup
	limiter *rate.Limiter
	workers int
	clock   clockwork.Clock
	log     *slog.Logger
}

// NewAligner creates an Aligner.
func NewAligner(opts AlignerOptions) *Aligner {
	a := &Aligner{
		lookup:  opts.Lookup,
		limiter: rate.NewLimiter(rate.Inf, 1),
		workers: opts.Workers,
		clock:   opts.Clock,
		log:     logger.OrDiscard(opts.Logger),
	}
	if opts.Delay > 0 {
		a.limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	if a.workers <= 0 {
		a.workers = 1
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	return a
}

// Compute resolves n windows ending at the most recent Monday.
func (a *Aligner) Compute(ctx context.Context, n int) ([]domain.Window, error) {
	if n < 1 {
		return nil, ErrNoWindows
	}
	instants := MondayInstants(a.clock.Now(), n)
	blocks, err := a.Resolve(ctx, instants)
	if err != nil {
		return nil, err
	}
	windows, err := Build(instants, blocks)
	if err != nil {
		return nil, err
	}
	a.log.Info("windows: computed",
		"count", len(windows),
		"from", windows[0].StartTime.Format(time.DateOnly),
		"to", windows[len(windows)-1].EndTime.Format(time.DateOnly),
		"start_block", windows[0].StartBlock,
		"end_block", windows[len(windows)-1].EndBlock,
	)
	return windows, nil
}

// Resolve looks up the block at or before each instant, preserving order.
func (a *Aligner) Resolve(ctx context.Context, instants []time.Time) ([]int64, error) {
	blocks := make([]int64, len(instants))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, t := range instants {
		g.Go(func() error {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
			b, err := a.lookup.BlockAtOrBefore(ctx, t)
			if err != nil {
				return fmt.Errorf("block at %s: %w", t.Format(time.RFC3339), err)
			}
			a.log.Debug("windows: resolved block", "instant", t.Unix(), "block", b)
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}
