// Package leaderboard reads regional performance scores from the
// aggregated-stats leaderboard API.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"

	"network-kpi/internal/domain"
	"network-kpi/internal/httpx"
	"network-kpi/internal/logger"
)

// RegionStats is the leaderboard summary of one entity in one region.
type RegionStats struct {
	Score          float64 `json:"score"`
	SuccessRate    float64 `json:"success_rate"`
	RoundTripScore float64 `json:"round_trip_score"`
}

// Response maps entity id to region to stats.
type Response map[string]map[string]RegionStats

// Client queries the leaderboard.
type Client struct {
	baseURL string
	http    *httpx.Client
	log     *slog.Logger
}

// New creates a leaderboard client.
func New(baseURL string, client *httpx.Client, log *slog.Logger) *Client {
	if client == nil {
		client = httpx.New()
	}
	return &Client{baseURL: baseURL, http: client, log: logger.OrDiscard(log)}
}

// Stats returns per-region stats of every entity scored in [since, until].
func (c *Client) Stats(ctx context.Context, since, until int64) (Response, error) {
	params := url.Values{
		"since": {strconv.FormatInt(since, 10)},
		"until": {strconv.FormatInt(until, 10)},
	}
	var resp Response
	if err := c.http.GetJSON(ctx, c.baseURL, params, &resp); err != nil {
		return nil, fmt.Errorf("leaderboard aggregated stats %d-%d: %w", since, until, err)
	}
	return resp, nil
}

// BestRegions returns the best region score of every scored entity in each
// window, labelled with the window end.
func (c *Client) BestRegions(ctx context.Context, windows []domain.Window) ([]domain.RegionScore, error) {
	var out []domain.RegionScore
	for _, w := range windows {
		resp, err := c.Stats(ctx, w.StartTime.Unix(), w.EndTime.Unix())
		if err != nil {
			return nil, err
		}
		scores := Best(resp, w.Label())
		c.log.Debug("leaderboard: window scored", "window", w.Label().Date(), "entities", len(scores))
		out = append(out, scores...)
	}
	return out, nil
}

// Best reduces a response to the highest positive-scoring region per entity.
// An entity with no positive score keeps score 0 and an empty region.
func Best(resp Response, label domain.WindowLabel) []domain.RegionScore {
	ids := make([]string, 0, len(resp))
	for id := range resp {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.RegionScore, 0, len(ids))
	for _, id := range ids {
		regions := resp[id]
		names := make([]string, 0, len(regions))
		for r := range regions {
			names = append(names, r)
		}
		sort.Strings(names)

		best := domain.RegionScore{EntityID: id, Window: label}
		for _, r := range names {
			if s := regions[r].Score; s > best.Score {
				best.Score = s
				best.Region = r
			}
		}
		out = append(out, best)
	}
	return out
}
