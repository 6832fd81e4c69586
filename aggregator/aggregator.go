// Package aggregator fetches results over a block range from providers that reject
// queries above an unknown size. A rejected window is narrowed and retried; a
// successful one moves the window past it at full width again.
package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/celer-network/safe-storage-verifier/log"
)

var ErrFatalFetch = errors.New("fetch failed on a single block")

// FetchFunc returns the results of the inclusive block range [from, to].
type FetchFunc[T any] func(ctx context.Context, from, to uint64) ([]T, error)

// ProgressFunc is called after each successful sub-range fetch.
type ProgressFunc func(from, to, currFrom, currTo uint64)

type RangeFetcher[T any] struct {
	// MaxRange caps the width of a single query, 0 for no cap.
	MaxRange uint64
	Progress ProgressFunc

	logger *log.Logger
}

func NewRangeFetcher[T any](maxRange uint64, progress ProgressFunc) *RangeFetcher[T] {
	return &RangeFetcher[T]{
		MaxRange: maxRange,
		Progress: progress,
		logger:   log.NewLogger("aggregator"),
	}
}

// WithLogger replaces the logger, mostly for tests.
func (f *RangeFetcher[T]) WithLogger(logger *log.Logger) *RangeFetcher[T] {
	f.logger = logger
	return f
}

// window returns [left, right] capped to MaxRange blocks.
func (f *RangeFetcher[T]) window(left, right uint64) (uint64, uint64) {
	if f.MaxRange > 0 && right-left >= f.MaxRange {
		right = left + f.MaxRange - 1
	}
	return left, right
}

// narrow keeps the start of a rejected window and shrinks it to a tenth of its
// width, at least one block.
func narrow(start, end uint64) (uint64, uint64) {
	width := end - start + 1
	nextEnd := start
	if width/10 > 1 {
		nextEnd = start + width/10 - 1
	}
	return start, nextEnd
}

// Fetch returns the concatenated results of fn over [from, to] in block order. It
// issues one query at a time. A failure on a window wider than one block narrows the
// window; a failure on a single block aborts with ErrFatalFetch.
func (f *RangeFetcher[T]) Fetch(ctx context.Context, from, to uint64, fn FetchFunc[T]) ([]T, error) {
	var results []T
	if from > to {
		return results, nil
	}

	currFrom, currTo := f.window(from, to)
	for attempts := 1; ; attempts++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := fn(ctx, currFrom, currTo)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if currFrom == currTo {
				return nil, fmt.Errorf("%w: block %d after %d attempts: %v", ErrFatalFetch, currFrom, attempts, err)
			}
			nextFrom, nextTo := narrow(currFrom, currTo)
			f.logger.Debug().Err(err).
				Uint64("from", currFrom).Uint64("to", currTo).Uint64("narrowedTo", nextTo).
				Msg("query rejected, narrowing")
			currFrom, currTo = nextFrom, nextTo
			continue
		}

		results = append(results, batch...)
		if f.Progress != nil {
			f.Progress(from, to, currFrom, currTo)
		}
		if currTo >= to {
			return results, nil
		}
		currFrom, currTo = f.window(currTo+1, to)
	}
}

// Fetch is RangeFetcher.Fetch without a range cap or progress reporting.
func Fetch[T any](ctx context.Context, from, to uint64, fn FetchFunc[T]) ([]T, error) {
	return NewRangeFetcher[T](0, nil).Fetch(ctx, from, to, fn)
}
