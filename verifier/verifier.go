// Package verifier rebuilds the storage root of Safe accounts from their decoded
// state and compares it with the root the chain commits to.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/celer-network/safe-storage-verifier/deployments"
	"github.com/celer-network/safe-storage-verifier/log"
	"github.com/celer-network/safe-storage-verifier/storage"
	"github.com/celer-network/safe-storage-verifier/trie"
	"github.com/celer-network/safe-storage-verifier/types"
)

var (
	ErrNotASafe           = errors.New("not a Safe")
	ErrUnsupportedVersion = errors.New("unsupported Safe version")
	ErrCrossCheck         = errors.New("stack trie root differs from state trie root")
)

// SupportedVersions are the versions whose storage layout is known.
var SupportedVersions = mapset.NewSet[string]("1.3.0", "1.4.1")

// Chain supplies the on-chain data of one network.
type Chain interface {
	ChainID() uint64
	Singleton(ctx context.Context, safe common.Address, block uint64) (common.Address, error)
	FieldSet(ctx context.Context, safe common.Address, block uint64) (*types.StorageFieldSet, error)
	Events(ctx context.Context, safe common.Address, from, to uint64) (*types.Events, error)
	ProofRoot(ctx context.Context, safe common.Address, block uint64) (common.Hash, error)
}

// EventSource serves events fetched ahead of time for a whole chain. It returns nil
// for accounts without events.
type EventSource interface {
	Events(safe common.Address) *types.Events
}

type Config struct {
	// FromBlock is the first block scanned for events.
	FromBlock uint64
	// Concurrency is the number of accounts VerifyAll works on at once.
	Concurrency int
	// CheckpointInterval flushes batch results every so many accounts, 0 never.
	CheckpointInterval int
	// AccountTimeout bounds the verification of one account in a batch, 0 for none.
	AccountTimeout time.Duration
	// CrossCheck recomputes every root with a stack trie.
	CrossCheck bool
}

type Verifier struct {
	chain        Chain
	versions     *deployments.VersionCache
	cfg          Config
	events       EventSource
	checkpointer Checkpointer
	logger       *log.Logger
}

func New(chain Chain, versions *deployments.VersionCache, cfg Config) *Verifier {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Verifier{
		chain:    chain,
		versions: versions,
		cfg:      cfg,
		logger:   log.NewLogger("verifier"),
	}
}

// WithEventSource makes Verify read events from src instead of querying the chain
// per account.
func (v *Verifier) WithEventSource(src EventSource) *Verifier {
	v.events = src
	return v
}

func (v *Verifier) WithCheckpointer(cp Checkpointer) *Verifier {
	v.checkpointer = cp
	return v
}

func (v *Verifier) WithLogger(logger *log.Logger) *Verifier {
	v.logger = logger
	return v
}

// Version returns the Safe version of safe at block. It fails with ErrNotASafe when
// the singleton is not a known Safe singleton.
func (v *Verifier) Version(ctx context.Context, safe common.Address, block uint64) (string, error) {
	singleton, err := v.chain.Singleton(ctx, safe, block)
	if err != nil {
		return "", err
	}
	version, ok := v.versions.FindVersion(v.chain.ChainID(), singleton)
	if !ok {
		return "", fmt.Errorf("%w: %s has singleton %s", ErrNotASafe, safe.Hex(), singleton.Hex())
	}
	return version, nil
}

func (v *Verifier) eventsOf(ctx context.Context, safe common.Address, block uint64) (*types.Events, error) {
	if v.events != nil {
		return v.events.Events(safe), nil
	}
	return v.chain.Events(ctx, safe, v.cfg.FromBlock, block)
}

// Verify reconstructs the storage root of safe at block and compares it with the
// proven root. The returned result is never nil. A root mismatch is reported through
// the result only; not being a Safe, an unsupported version and failures also
// return an error.
func (v *Verifier) Verify(ctx context.Context, safe common.Address, block uint64) (*types.VerificationResult, error) {
	result := &types.VerificationResult{Address: safe, BlockNumber: block, Status: types.StatusError}
	fail := func(err error) (*types.VerificationResult, error) {
		switch {
		case errors.Is(err, ErrNotASafe):
			result.Status = types.StatusNotASafe
		case errors.Is(err, ErrUnsupportedVersion):
			result.Status = types.StatusUnsupported
		default:
			result.Status = types.StatusError
		}
		result.Err = err.Error()
		return result, err
	}

	version, err := v.Version(ctx, safe, block)
	if err != nil {
		return fail(err)
	}
	result.Version = version
	if !SupportedVersions.Contains(version) {
		return fail(fmt.Errorf("%w: %s is v%s", ErrUnsupportedVersion, safe.Hex(), version))
	}
	layout, err := storage.LayoutForVersion(version)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrUnsupportedVersion, err))
	}
	v.logger.Debug().Str("safe", safe.Hex()).Str("version", version).Uint64("block", block).Msg("verifying")

	fields, err := v.chain.FieldSet(ctx, safe, block)
	if err != nil {
		return fail(err)
	}
	if fields.IsEmpty() {
		return fail(fmt.Errorf("%w: %s has no Safe state", ErrNotASafe, safe.Hex()))
	}
	events, err := v.eventsOf(ctx, safe, block)
	if err != nil {
		return fail(err)
	}
	if err := storage.FieldsFromEvents(fields, events); err != nil {
		return fail(err)
	}
	expected, err := v.chain.ProofRoot(ctx, safe, block)
	if err != nil {
		return fail(err)
	}

	actual, err := v.computeRoot(layout, fields)
	if err != nil {
		return fail(err)
	}
	result.Expected = expected
	result.Actual = actual
	result.Matched = expected == actual
	if result.Matched {
		result.Status = types.StatusSuccess
	} else {
		result.Status = types.StatusMismatch
	}
	v.logger.Info().Str("safe", safe.Hex()).
		Str("expected", expected.Hex()).Str("actual", actual.Hex()).
		Bool("matched", result.Matched).Msg("storage root")
	return result, nil
}

func (v *Verifier) computeRoot(layout storage.Layout, fields *types.StorageFieldSet) (common.Hash, error) {
	entries, err := storage.DeriveSlotEntries(layout, fields)
	if err != nil {
		return common.Hash{}, err
	}
	root, err := trie.Commit(entries)
	if err != nil {
		return common.Hash{}, err
	}
	if v.cfg.CrossCheck {
		stackRoot, err := trie.StackCommit(entries)
		if err != nil {
			return common.Hash{}, err
		}
		if stackRoot != root {
			return common.Hash{}, fmt.Errorf("%w: %s and %s", ErrCrossCheck, root.Hex(), stackRoot.Hex())
		}
	}
	return root, nil
}
