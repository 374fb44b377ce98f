package chain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// blockHeader is the subset of an eth_getBlockByNumber result we read.
type blockHeader struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}

// RPCBlockLookup resolves instants by binary search over block timestamps
// using any JSON-RPC Caller. Timestamps are cached across lookups, so
// resolving a series of nearby instants touches few new blocks.
type RPCBlockLookup struct {
	caller Caller

	mu    sync.Mutex
	times map[int64]int64
}

// NewRPCBlockLookup creates a lookup over caller.
func NewRPCBlockLookup(caller Caller) *RPCBlockLookup {
	return &RPCBlockLookup{caller: caller, times: make(map[int64]int64)}
}

// Compile-time interface check.
var _ BlockLookup = (*RPCBlockLookup)(nil)

// LatestBlock returns the current head block number.
func (l *RPCBlockLookup) LatestBlock(ctx context.Context) (int64, error) {
	var hex string
	if err := l.caller.Call(ctx, "eth_blockNumber", nil, &hex); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	n, err := parseHex(hex)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: parse %q: %w", hex, err)
	}
	return n, nil
}

// BlockTime returns the unix timestamp of block n.
func (l *RPCBlockLookup) BlockTime(ctx context.Context, n int64) (int64, error) {
	l.mu.Lock()
	ts, ok := l.times[n]
	l.mu.Unlock()
	if ok {
		return ts, nil
	}

	var header *blockHeader
	if err := l.caller.Call(ctx, "eth_getBlockByNumber", []any{toHex(n), false}, &header); err != nil {
		return 0, fmt.Errorf("eth_getBlockByNumber %d: %w", n, err)
	}
	if header == nil {
		return 0, fmt.Errorf("block %d: %w", n, ErrBlockNotFound)
	}
	ts, err := parseHex(header.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("block %d: parse timestamp %q: %w", n, header.Timestamp, err)
	}

	l.mu.Lock()
	l.times[n] = ts
	l.mu.Unlock()
	return ts, nil
}

// BlockAtOrBefore returns the highest block whose timestamp is <= t.
func (l *RPCBlockLookup) BlockAtOrBefore(ctx context.Context, t time.Time) (int64, error) {
	target := t.Unix()

	hi, err := l.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	headTime, err := l.BlockTime(ctx, hi)
	if err != nil {
		return 0, err
	}
	if headTime <= target {
		return hi, nil
	}

	lo := int64(0)
	genesisTime, err := l.BlockTime(ctx, lo)
	if err != nil {
		return 0, err
	}
	if genesisTime > target {
		return 0, fmt.Errorf("instant %s precedes genesis: %w", t.UTC().Format(time.RFC3339), ErrBlockNotFound)
	}

	// invariant: time(lo) <= target < time(hi)
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		ts, err := l.BlockTime(ctx, mid)
		if err != nil {
			return 0, err
		}
		if ts <= target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}
