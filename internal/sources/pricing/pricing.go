// Package pricing reads advertised transcoding prices from the orchestrator
// stats API.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"network-kpi/internal/domain"
	"network-kpi/internal/httpx"
	"network-kpi/internal/logger"
	"network-kpi/internal/metrics"
)

// HistoryLimit is the number of price points requested per orchestrator.
const HistoryLimit = 10000

// Client queries the pricing API.
type Client struct {
	baseURL string
	http    *httpx.Client
	workers int
	log     *slog.Logger
}

// New creates a pricing client. workers bounds concurrent history requests;
// pacing between them comes from the httpx client's rate limit.
func New(baseURL string, client *httpx.Client, workers int, log *slog.Logger) *Client {
	if client == nil {
		client = httpx.New()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		workers: workers,
		log:     logger.OrDiscard(log),
	}
}

type statsEntry struct {
	Address       string  `json:"Address"`
	ServiceURI    string  `json:"ServiceURI"`
	PricePerPixel float64 `json:"PricePerPixel"`
}

// OrchestratorStats returns the current aggregated stats of every orchestrator.
func (c *Client) OrchestratorStats(ctx context.Context) ([]domain.OrchestratorStats, error) {
	var entries []statsEntry
	if err := c.http.GetJSON(ctx, c.baseURL+"/orchestratorStats", nil, &entries); err != nil {
		return nil, fmt.Errorf("orchestrator stats: %w", err)
	}
	out := make([]domain.OrchestratorStats, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.OrchestratorStats{
			EntityID:      strings.ToLower(e.Address),
			ServiceURI:    e.ServiceURI,
			PricePerPixel: e.PricePerPixel,
		})
	}
	return out, nil
}

type historyEntry struct {
	Time          int64   `json:"Time"`
	PricePerPixel float64 `json:"PricePerPixel"`
}

// PriceHistory returns the advertised price history of one orchestrator.
func (c *Client) PriceHistory(ctx context.Context, id string) ([]domain.PricePoint, error) {
	params := url.Values{"limit": {fmt.Sprint(HistoryLimit)}}
	var entries []historyEntry
	if err := c.http.GetJSON(ctx, c.baseURL+"/priceHistory/"+url.PathEscape(id), params, &entries); err != nil {
		return nil, fmt.Errorf("price history %s: %w", id, err)
	}
	out := make([]domain.PricePoint, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.PricePoint{Time: time.Unix(e.Time, 0).UTC(), PricePerPixel: e.PricePerPixel})
	}
	return out, nil
}

// PriceHistories fetches the history of every id concurrently. An id whose
// request fails is logged and left out of the map; the failures are returned
// joined alongside the histories that succeeded.
func (c *Client) PriceHistories(ctx context.Context, ids []string) (map[string][]domain.PricePoint, error) {
	var mu sync.Mutex
	out := make(map[string][]domain.PricePoint, len(ids))
	var errs []error

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, id := range ids {
		g.Go(func() error {
			points, err := c.PriceHistory(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Debug("pricing: history failed", "entity", id, "error", err)
				errs = append(errs, err)
				return nil
			}
			out[id] = points
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}
	c.log.Debug("pricing: fetched histories", "entities", len(out), "failed", len(errs))
	if len(errs) > 0 {
		return out, fmt.Errorf("%d of %d price histories failed: %w", len(errs), len(ids), errors.Join(errs...))
	}
	return out, nil
}

// MeanInRange returns the mean positive price observed in [start, end], or
// nil when there is none.
func MeanInRange(points []domain.PricePoint, start, end time.Time) *float64 {
	var prices []float64
	for _, p := range points {
		if p.PricePerPixel <= 0 || p.Time.Before(start) || p.Time.After(end) {
			continue
		}
		prices = append(prices, p.PricePerPixel)
	}
	if len(prices) == 0 {
		return nil
	}
	m := metrics.MeanOf(prices)
	return &m
}
