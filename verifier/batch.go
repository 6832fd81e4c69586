package verifier

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/celer-network/safe-storage-verifier/types"
)

// Checkpointer persists the partial results of a batch run.
type Checkpointer interface {
	Checkpoint(chainID uint64, block uint64, batch *types.BatchResult) error
}

// accumulator collects batch results. Adding and checkpointing happen under one lock
// so checkpoints never interleave.
type accumulator struct {
	mu        sync.Mutex
	batch     *types.BatchResult
	processed int
}

func (a *accumulator) add(r *types.VerificationResult, flush func(*types.BatchResult) error, interval int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batch.Add(r)
	a.processed++
	if flush != nil && interval > 0 && a.processed%interval == 0 {
		return flush(a.batch)
	}
	return nil
}

func (v *Verifier) verifyOne(ctx context.Context, index int, safe common.Address, block uint64) *types.VerificationResult {
	if v.cfg.AccountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.AccountTimeout)
		defer cancel()
	}
	result, err := v.Verify(ctx, safe, block)
	event := v.logger.Info()
	if result.Status == types.StatusError || result.Status == types.StatusMismatch {
		event = v.logger.Warn()
	}
	event.Int("index", index).Str("safe", safe.Hex()).Str("status", result.Status.String()).Err(err).Msg("verified")
	return result
}

// VerifyAll verifies every account in safes at block. Per account failures are
// recorded as StatusError and do not stop the run. Results are returned in input
// order; a checkpoint or cancellation error is returned with the results gathered so
// far.
func (v *Verifier) VerifyAll(ctx context.Context, safes []common.Address, block uint64) (*types.BatchResult, error) {
	chainID := v.chain.ChainID()
	var flush func(*types.BatchResult) error
	if v.checkpointer != nil {
		flush = func(batch *types.BatchResult) error {
			v.logger.Info().Int("accounts", batch.Total()).Msg("checkpoint")
			return v.checkpointer.Checkpoint(chainID, block, batch)
		}
	}

	acc := &accumulator{batch: &types.BatchResult{}}
	ordered := make([]*types.VerificationResult, len(safes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)
	for i, safe := range safes {
		i, safe := i, safe
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := v.verifyOne(gctx, i, safe, block)
			ordered[i] = result
			return acc.add(result, flush, v.cfg.CheckpointInterval)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	batch := &types.BatchResult{}
	for _, result := range ordered {
		if result != nil {
			batch.Add(result)
		}
	}
	// the last partial interval, also on cancellation
	if flush != nil && (v.cfg.CheckpointInterval <= 0 || acc.processed%v.cfg.CheckpointInterval != 0) {
		if flushErr := flush(batch); flushErr != nil && err == nil {
			err = flushErr
		}
	}

	counts := batch.Counts()
	v.logger.Info().
		Int("success", counts[types.StatusSuccess]).
		Int("mismatch", counts[types.StatusMismatch]).
		Int("error", counts[types.StatusError]).
		Int("unsupported", counts[types.StatusUnsupported]).
		Int("notASafe", counts[types.StatusNotASafe]).
		Msg("batch done")
	return batch, err
}
