package windows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearChain produces one block every 12 seconds from genesis.
type linearChain struct {
	genesis int64

	mu    sync.Mutex
	calls []time.Time
	fail  error
}

func (c *linearChain) BlockAtOrBefore(_ context.Context, t time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, time.Now())
	if c.fail != nil {
		return 0, c.fail
	}
	return (t.Unix() - c.genesis) / 12, nil
}

func TestLastMonday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2024, 3, 13, 15, 4, 5, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"monday midnight", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2024, 3, 17, 23, 59, 59, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"across month", time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastMonday(tt.now); !got.Equal(tt.want) {
				t.Errorf("LastMonday(%s) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestMondayInstants(t *testing.T) {
	now := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	got := MondayInstants(now, 3)

	require.Len(t, got, 4)
	assert.Equal(t, time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), got[3])
	for i := 1; i < len(got); i++ {
		assert.Equal(t, Week, got[i].Sub(got[i-1]))
		assert.Equal(t, time.Monday, got[i].Weekday())
	}
}

func TestAligner_Compute_Contiguous(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC))
	lookup := &linearChain{genesis: 1_438_269_973}
	a := NewAligner(AlignerOptions{Lookup: lookup, Workers: 4, Clock: clock})

	windows, err := a.Compute(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, windows, 10)
	assert.Len(t, lookup.calls, 11)

	for i, w := range windows {
		assert.True(t, w.StartTime.Before(w.EndTime), "window %d: start before end", i)
		assert.LessOrEqual(t, w.StartBlock, w.EndBlock, "window %d: block order", i)
		if i > 0 {
			assert.Equal(t, windows[i-1].EndTime, w.StartTime, "window %d: time contiguity", i)
			assert.Equal(t, windows[i-1].EndBlock, w.StartBlock, "window %d: block contiguity", i)
		}
	}
	assert.Equal(t, LastMonday(clock.Now()), windows[9].EndTime)
}

func TestAligner_Compute_Paced(t *testing.T) {
	lookup := &linearChain{}
	a := NewAligner(AlignerOptions{
		Lookup:  lookup,
		Delay:   20 * time.Millisecond,
		Workers: 4,
		Clock:   clockwork.NewFakeClockAt(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)),
	})

	_, err := a.Compute(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, lookup.calls, 4)

	// 4 calls with a burst of 1 need at least 3 full intervals.
	elapsed := lookup.calls[3].Sub(lookup.calls[0])
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestAligner_Compute_LookupError(t *testing.T) {
	lookup := &linearChain{fail: errors.New("quota exceeded")}
	a := NewAligner(AlignerOptions{Lookup: lookup})

	_, err := a.Compute(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAligner_Compute_NoWindows(t *testing.T) {
	a := NewAligner(AlignerOptions{Lookup: &linearChain{}})
	_, err := a.Compute(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoWindows)
}

func TestBuild_RejectsDescendingBlocks(t *testing.T) {
	instants := MondayInstants(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), 2)
	_, err := Build(instants, []int64{300, 200, 400})
	assert.Error(t, err)

	_, err = Build(instants, []int64{1, 2})
	assert.Error(t, err)
}
