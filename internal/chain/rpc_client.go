package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"network-kpi/internal/httpx"
)

// Caller performs a single JSON-RPC call.
type Caller interface {
	Call(ctx context.Context, method string, params []any, result any) error
}

// HTTPClient implements Caller using HTTP JSON-RPC 2.0. Retries, pacing and
// request metrics come from the underlying httpx client.
type HTTPClient struct {
	endpoint  string
	http      *httpx.Client
	requestID atomic.Uint64
}

// NewHTTPClient creates a JSON-RPC client for an Ethereum node. A nil client
// uses httpx defaults.
func NewHTTPClient(endpoint string, client *httpx.Client) *HTTPClient {
	if client == nil {
		client = httpx.New()
	}
	return &HTTPClient{endpoint: endpoint, http: client}
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Call performs a JSON-RPC call. Transport failures are retried by the
// httpx client; RPC errors are returned as *RPCError without retry.
func (c *HTTPClient) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}
	var resp rpcResponse
	if err := c.http.PostJSON(ctx, c.endpoint, req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	return decodeResult(resp.Result, result)
}

func decodeResult(raw json.RawMessage, result any) error {
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// parseHex parses a 0x-prefixed quantity.
func parseHex(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(s, "0x"), 16, 64)
}

func toHex(n int64) string {
	return "0x" + strconv.FormatInt(n, 16)
}
