// Package chain resolves wall-clock instants to ledger block numbers.
package chain

import (
	"context"
	"errors"
	"time"
)

// BlockLookup resolves the last block produced at or before t.
type BlockLookup interface {
	BlockAtOrBefore(ctx context.Context, t time.Time) (int64, error)
}

// ErrBlockNotFound is returned when no block exists at or before the instant.
var ErrBlockNotFound = errors.New("block not found")
