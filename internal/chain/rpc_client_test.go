package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"network-kpi/internal/httpx"
)

func TestHTTPClient_Call(t *testing.T) {
	node := &fakeNode{head: 0x1234, genesis: 1_600_000_000, spacing: 12}
	srv := node.httpServer(t)

	client := NewHTTPClient(srv.URL, nil)
	var hex string
	if err := client.Call(context.Background(), "eth_blockNumber", nil, &hex); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if hex != "0x1234" {
		t.Errorf("expected 0x1234, got %s", hex)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	node := &fakeNode{head: 10, genesis: 0, spacing: 1}
	srv := node.httpServer(t)

	client := NewHTTPClient(srv.URL, httpx.New(httpx.WithRetryDelay(time.Millisecond)))
	err := client.Call(context.Background(), "eth_unknown", nil, nil)

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("expected code -32601, got %d", rpcErr.Code)
	}
	if node.calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", node.calls.Load())
	}
}

func TestHTTPClient_RetryOn429(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x10"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, httpx.New(httpx.WithRetryDelay(10*time.Millisecond)))
	var hex string
	if err := client.Call(context.Background(), "eth_blockNumber", nil, &hex); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if hex != "0x10" {
		t.Errorf("expected 0x10, got %s", hex)
	}
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, httpx.New(httpx.WithMaxRetries(2), httpx.WithRetryDelay(time.Millisecond)))
	err := client.Call(context.Background(), "eth_blockNumber", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, httpx.New(httpx.WithRetryDelay(time.Second)))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Call(ctx, "eth_blockNumber", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, httpx.New(httpx.WithRetryDelay(time.Millisecond)))
	err := client.Call(context.Background(), "eth_blockNumber", nil, nil)
	if !httpx.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0x0", 0},
		{"0xd5bb6b", 14007147},
		{"ff", 255},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.in)
		if err != nil {
			t.Errorf("parseHex(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseHex(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if toHex(14007147) != "0xd5bb6b" {
		t.Errorf("toHex: got %s", toHex(14007147))
	}
}
