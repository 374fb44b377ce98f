// Package market reads token prices from the CoinGecko API.
package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"network-kpi/internal/httpx"
	"network-kpi/internal/metrics"
)

// DefaultCoin is the CoinGecko id of the staking token.
const DefaultCoin = "livepeer"

// ErrNoPrices is returned when a range holds no price observations.
var ErrNoPrices = errors.New("no prices in range")

// Client queries CoinGecko.
type Client struct {
	baseURL string
	coin    string
	http    *httpx.Client
}

// New creates a CoinGecko client for coin.
func New(baseURL, coin string, client *httpx.Client) *Client {
	if client == nil {
		client = httpx.New()
	}
	if coin == "" {
		coin = DefaultCoin
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), coin: coin, http: client}
}

// marketChart is the market_chart/range response; each point is [ms, value].
type marketChart struct {
	Prices [][2]float64 `json:"prices"`
}

// PricesUSD returns the USD prices observed in [from, to].
func (c *Client) PricesUSD(ctx context.Context, from, to time.Time) ([]float64, error) {
	params := url.Values{
		"vs_currency": {"usd"},
		"from":        {strconv.FormatInt(from.Unix(), 10)},
		"to":          {strconv.FormatInt(to.Unix(), 10)},
	}
	var chart marketChart
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range", c.baseURL, url.PathEscape(c.coin))
	if err := c.http.GetJSON(ctx, endpoint, params, &chart); err != nil {
		return nil, fmt.Errorf("coingecko %s range: %w", c.coin, err)
	}
	prices := make([]float64, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		prices = append(prices, p[1])
	}
	return prices, nil
}

// MeanPriceUSD returns the mean USD price in [from, to].
func (c *Client) MeanPriceUSD(ctx context.Context, from, to time.Time) (float64, error) {
	prices, err := c.PricesUSD(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("coingecko %s %s to %s: %w", c.coin, from.Format(time.DateOnly), to.Format(time.DateOnly), ErrNoPrices)
	}
	return metrics.MeanOf(prices), nil
}
