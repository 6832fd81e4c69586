package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer-network/safe-storage-verifier/log"
)

var errTooWide = errors.New("query returned more than 10000 results")

type call struct{ from, to uint64 }

// limitedFetcher returns every block number in the range and rejects ranges wider
// than limit.
func limitedFetcher(limit uint64, calls *[]call) FetchFunc[uint64] {
	return func(_ context.Context, from, to uint64) ([]uint64, error) {
		*calls = append(*calls, call{from, to})
		if to-from+1 > limit {
			return nil, errTooWide
		}
		blocks := make([]uint64, 0, to-from+1)
		for b := from; b <= to; b++ {
			blocks = append(blocks, b)
		}
		return blocks, nil
	}
}

func span(from, to uint64) []uint64 {
	var blocks []uint64
	for b := from; b <= to; b++ {
		blocks = append(blocks, b)
	}
	return blocks
}

func newTestFetcher(maxRange uint64, progress ProgressFunc) *RangeFetcher[uint64] {
	return NewRangeFetcher[uint64](maxRange, progress).WithLogger(log.Nop())
}

func TestFetchWholeRange(t *testing.T) {
	var calls []call
	blocks, err := newTestFetcher(0, nil).Fetch(context.Background(), 10, 99, limitedFetcher(1000, &calls))
	require.NoError(t, err)
	assert.Equal(t, span(10, 99), blocks)
	assert.Equal(t, []call{{10, 99}}, calls)
}

func TestFetchEmptyRange(t *testing.T) {
	var calls []call
	blocks, err := newTestFetcher(0, nil).Fetch(context.Background(), 5, 4, limitedFetcher(1, &calls))
	require.NoError(t, err)
	assert.Empty(t, blocks)
	assert.Empty(t, calls)
}

func TestFetchNarrowsAndExpands(t *testing.T) {
	var calls []call
	blocks, err := newTestFetcher(0, nil).Fetch(context.Background(), 0, 999, limitedFetcher(100, &calls))
	require.NoError(t, err)
	assert.Equal(t, span(0, 999), blocks)

	// rejected at full width, narrowed to a tenth, then the rest is tried in full
	require.True(t, len(calls) >= 3)
	assert.Equal(t, call{0, 999}, calls[0])
	assert.Equal(t, call{0, 99}, calls[1])
	assert.Equal(t, call{100, 999}, calls[2])
}

func TestFetchTerminatesForAnyLimit(t *testing.T) {
	for _, limit := range []uint64{1, 2, 3, 9, 10, 11, 99, 12345} {
		var calls []call
		blocks, err := newTestFetcher(0, nil).Fetch(context.Background(), 1, 20000, limitedFetcher(limit, &calls))
		require.NoError(t, err, "limit %d", limit)
		assert.Equal(t, span(1, 20000), blocks, "limit %d", limit)
		assert.Less(t, len(calls), 200000, "limit %d", limit)
	}
}

func TestFetchSingleBlockFailureIsFatal(t *testing.T) {
	calls := 0
	failing := func(_ context.Context, from, to uint64) ([]uint64, error) {
		calls++
		return nil, errTooWide
	}
	_, err := newTestFetcher(0, nil).Fetch(context.Background(), 0, 1_000_000, failing)
	require.ErrorIs(t, err, ErrFatalFetch)
	// 1e6 -> 1e5 -> ... -> 1
	assert.Equal(t, 7, calls)
}

func TestFetchFailsOnPoisonedBlock(t *testing.T) {
	fetch := func(_ context.Context, from, to uint64) ([]uint64, error) {
		if from <= 500 && 500 <= to {
			return nil, errTooWide
		}
		return span(from, to), nil
	}
	_, err := newTestFetcher(0, nil).Fetch(context.Background(), 0, 999, fetch)
	require.ErrorIs(t, err, ErrFatalFetch)
	assert.Contains(t, err.Error(), "block 500")
}

func TestFetchMaxRange(t *testing.T) {
	var calls []call
	blocks, err := newTestFetcher(300, nil).Fetch(context.Background(), 0, 999, limitedFetcher(1000, &calls))
	require.NoError(t, err)
	assert.Equal(t, span(0, 999), blocks)
	assert.Equal(t, []call{{0, 299}, {300, 599}, {600, 899}, {900, 999}}, calls)
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(_ context.Context, from, to uint64) ([]uint64, error) {
		calls++
		cancel()
		return span(from, to), nil
	}
	_, err := newTestFetcher(10, nil).Fetch(ctx, 0, 999, fetch)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFetchReportsProgress(t *testing.T) {
	var reported []call
	progress := func(from, to, currFrom, currTo uint64) {
		assert.Equal(t, uint64(0), from)
		assert.Equal(t, uint64(999), to)
		reported = append(reported, call{currFrom, currTo})
	}
	var calls []call
	_, err := newTestFetcher(250, progress).Fetch(context.Background(), 0, 999, limitedFetcher(1000, &calls))
	require.NoError(t, err)
	assert.Equal(t, calls, reported)
}

func TestNarrow(t *testing.T) {
	tests := []struct{ start, end, nextEnd uint64 }{
		{0, 999, 99},
		{100, 199, 109},
		{0, 19, 1},
		{0, 10, 0},
		{5, 6, 5},
	}
	for _, tt := range tests {
		start, end := narrow(tt.start, tt.end)
		assert.Equal(t, tt.start, start)
		assert.Equal(t, tt.nextEnd, end, "narrow(%d, %d)", tt.start, tt.end)
	}
}
