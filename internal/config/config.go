// Package config holds the run configuration passed explicitly to every
// component of the segmentation pipeline.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default values.
const (
	DefaultNumWindows     = 10
	DefaultPageSize       = 100
	DefaultPageCap        = 5000
	DefaultMaxRetries     = 3
	DefaultRateLimitDelay = 500 * time.Millisecond
	DefaultWorkers        = 4
	DefaultHTTPTimeout    = 30 * time.Second

	DefaultMainnetSubgraphURL  = "https://api.thegraph.com/subgraphs/name/livepeer/livepeer"
	DefaultArbitrumSubgraphURL = "https://api.thegraph.com/subgraphs/name/livepeer/arbitrum-one"
	DefaultLeaderboardURL      = "https://leaderboard-serverless.vercel.app/api/aggregated_stats/"
	DefaultPricingURL          = "https://nyc.livepeer.com"
	DefaultCoinGeckoURL        = "https://api.coingecko.com/api/v3"
	DefaultEtherscanURL        = "https://api.etherscan.io/api"
)

// Config is the configuration of one pipeline run.
type Config struct {
	NumWindows int

	// RateLimitDelay is the minimum spacing between calls to the same
	// rate-limited host (rate_limit_delay_ms).
	RateLimitDelay time.Duration
	// MaxRetries bounds retries of a failed HTTP call (max_retries).
	MaxRetries int
	// PageCap is the upstream maximum skip offset (page_cap).
	PageCap  int
	PageSize int

	Workers     int
	HTTPTimeout time.Duration

	MainnetSubgraphURL  string
	ArbitrumSubgraphURL string
	LeaderboardURL      string
	PricingURL          string
	CoinGeckoURL        string
	EtherscanURL        string
	EtherscanAPIKey     string
	// EthRPCURL, when set, resolves blocks by binary search over JSON-RPC
	// instead of Etherscan. ws:// and wss:// use a WebSocket connection.
	EthRPCURL string

	GeoIPCityDB string
	GeoIPASNDB  string

	// Optional enrichments.
	EnablePricing       bool
	EnableGeo           bool
	EnableProfitability bool

	Clock clockwork.Clock
}

// Default returns a Config with every default applied.
func Default() Config {
	cfg := Config{
		EnablePricing:       true,
		EnableGeo:           true,
		EnableProfitability: true,
	}
	_ = cfg.Validate()
	return cfg
}

// Validate checks the configuration and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.NumWindows < 0 {
		return errors.New("num windows must not be negative")
	}
	if c.NumWindows == 0 {
		c.NumWindows = DefaultNumWindows
	}
	if c.PageSize < 0 || c.PageCap < 0 {
		return errors.New("page size and page cap must not be negative")
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageCap == 0 {
		c.PageCap = DefaultPageCap
	}
	if c.PageCap%c.PageSize != 0 {
		return fmt.Errorf("page cap %d must be a multiple of page size %d", c.PageCap, c.PageSize)
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	if c.RateLimitDelay < 0 {
		return errors.New("rate limit delay must not be negative")
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.MainnetSubgraphURL == "" {
		c.MainnetSubgraphURL = DefaultMainnetSubgraphURL
	}
	if c.ArbitrumSubgraphURL == "" {
		c.ArbitrumSubgraphURL = DefaultArbitrumSubgraphURL
	}
	if c.LeaderboardURL == "" {
		c.LeaderboardURL = DefaultLeaderboardURL
	}
	if c.PricingURL == "" {
		c.PricingURL = DefaultPricingURL
	}
	if c.CoinGeckoURL == "" {
		c.CoinGeckoURL = DefaultCoinGeckoURL
	}
	if c.EtherscanURL == "" {
		c.EtherscanURL = DefaultEtherscanURL
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}
