package config

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultNumWindows, cfg.NumWindows)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultPageCap, cfg.PageCap)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultMainnetSubgraphURL, cfg.MainnetSubgraphURL)
	assert.Equal(t, DefaultEtherscanURL, cfg.EtherscanURL)
	assert.NotNil(t, cfg.Clock)
}

func TestConfig_ValidateKeepsValues(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := Config{
		NumWindows:     3,
		PageSize:       50,
		PageCap:        1000,
		RateLimitDelay: time.Second,
		Clock:          clock,
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.NumWindows)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 1000, cfg.PageCap)
	assert.Equal(t, time.Second, cfg.RateLimitDelay)
	assert.Equal(t, clock, cfg.Clock)
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative windows", Config{NumWindows: -1}},
		{"negative retries", Config{MaxRetries: -1}},
		{"negative delay", Config{RateLimitDelay: -time.Second}},
		{"cap not multiple of page", Config{PageSize: 30, PageCap: 100}},
		{"negative page size", Config{PageSize: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.EnablePricing)
	assert.True(t, cfg.EnableGeo)
	assert.True(t, cfg.EnableProfitability)
	assert.Equal(t, DefaultPageCap, cfg.PageCap)
}
