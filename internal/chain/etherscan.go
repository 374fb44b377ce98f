package chain

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"network-kpi/internal/httpx"
)

// EtherscanClient queries the Etherscan HTTP API.
type EtherscanClient struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
}

// NewEtherscanClient creates an Etherscan client.
func NewEtherscanClient(baseURL, apiKey string, client *httpx.Client) *EtherscanClient {
	if client == nil {
		client = httpx.New()
	}
	return &EtherscanClient{baseURL: baseURL, apiKey: apiKey, http: client}
}

// Compile-time interface check.
var _ BlockLookup = (*EtherscanClient)(nil)

// etherscanResponse is the envelope of every Etherscan API response.
// Result is a string on errors and for block lookups, an object for prices.
type etherscanResponse[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

func (c *EtherscanClient) get(ctx context.Context, params url.Values, out any) error {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	return c.http.GetJSON(ctx, c.baseURL, params, out)
}

// BlockAtOrBefore returns the closest block before t.
func (c *EtherscanClient) BlockAtOrBefore(ctx context.Context, t time.Time) (int64, error) {
	params := url.Values{
		"module":    {"block"},
		"action":    {"getblocknobytime"},
		"timestamp": {strconv.FormatInt(t.Unix(), 10)},
		"closest":   {"before"},
	}
	var resp etherscanResponse[string]
	if err := c.get(ctx, params, &resp); err != nil {
		return 0, fmt.Errorf("etherscan getblocknobytime: %w", err)
	}
	if resp.Status != "1" {
		return 0, fmt.Errorf("etherscan getblocknobytime at %d: %s: %s", t.Unix(), resp.Message, resp.Result)
	}
	block, err := strconv.ParseInt(resp.Result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("etherscan getblocknobytime: parse block %q: %w", resp.Result, err)
	}
	return block, nil
}

type ethPriceResult struct {
	ETHUSD string `json:"ethusd"`
}

// ETHPriceUSD returns the last ETH/USD price.
func (c *EtherscanClient) ETHPriceUSD(ctx context.Context) (float64, error) {
	params := url.Values{
		"module": {"stats"},
		"action": {"ethprice"},
	}
	var resp etherscanResponse[ethPriceResult]
	if err := c.get(ctx, params, &resp); err != nil {
		return 0, fmt.Errorf("etherscan ethprice: %w", err)
	}
	if resp.Status != "1" {
		return 0, fmt.Errorf("etherscan ethprice: %s", resp.Message)
	}
	price, err := strconv.ParseFloat(resp.Result.ETHUSD, 64)
	if err != nil {
		return 0, fmt.Errorf("etherscan ethprice: parse %q: %w", resp.Result.ETHUSD, err)
	}
	return price, nil
}
