package verifier

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer-network/safe-storage-verifier/deployments"
	"github.com/celer-network/safe-storage-verifier/log"
	"github.com/celer-network/safe-storage-verifier/serialization"
	"github.com/celer-network/safe-storage-verifier/types"
)

var (
	singleton141 = common.HexToAddress("0x41675C099F32341bf84BFc5382aF534df5C7461a")
	singleton120 = common.HexToAddress("0x6851D6fDFAfD08c0295C392436245E5bc78B0185")
	fallback141  = common.HexToAddress("0xfd0732Dc9E303f09fCEf3a7388Ad10A83459Ec99")
	ownerA       = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	ownerB       = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	approvedH    = crypto.Keccak256Hash([]byte("approved"))

	rootA = common.HexToHash("c70a80bb7f31a47b76dfa07860353d9b860d0f0f07ce398d69c35594fc902c3b")
	rootB = common.HexToHash("87206c8285eef63c43e21f598a09fdd433ddd3dd58e33783c80086aaa0aa5eda")

	errRPC = errors.New("503 service unavailable")
)

type account struct {
	singleton common.Address
	fields    func() *types.StorageFieldSet
	events    *types.Events
	root      common.Hash
	fieldErr  error
	block     bool
}

// fakeChain serves accounts from memory. Accounts with block set wait for the
// context to end before answering FieldSet.
type fakeChain struct {
	mu          sync.Mutex
	accounts    map[common.Address]*account
	eventCalls  int
	fieldCalls  int
	concurrent  int
	maxParallel int
}

func newFakeChain() *fakeChain {
	return &fakeChain{accounts: make(map[common.Address]*account)}
}

func (c *fakeChain) ChainID() uint64 { return 1 }

func (c *fakeChain) Singleton(_ context.Context, safe common.Address, _ uint64) (common.Address, error) {
	if a, ok := c.accounts[safe]; ok {
		return a.singleton, nil
	}
	return common.Address{}, nil
}

func (c *fakeChain) FieldSet(ctx context.Context, safe common.Address, _ uint64) (*types.StorageFieldSet, error) {
	c.mu.Lock()
	c.fieldCalls++
	c.concurrent++
	if c.concurrent > c.maxParallel {
		c.maxParallel = c.concurrent
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.concurrent--
		c.mu.Unlock()
	}()

	a := c.accounts[safe]
	if a.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if a.fieldErr != nil {
		return nil, a.fieldErr
	}
	time.Sleep(time.Millisecond)
	return a.fields(), nil
}

func (c *fakeChain) Events(_ context.Context, safe common.Address, _, _ uint64) (*types.Events, error) {
	c.mu.Lock()
	c.eventCalls++
	c.mu.Unlock()
	return c.accounts[safe].events, nil
}

func (c *fakeChain) ProofRoot(_ context.Context, safe common.Address, _ uint64) (common.Hash, error) {
	return c.accounts[safe].root, nil
}

type eventMap map[common.Address]*types.Events

func (m eventMap) Events(safe common.Address) *types.Events { return m[safe] }

type recordingCheckpointer struct {
	mu     sync.Mutex
	totals []int
	err    error
}

func (r *recordingCheckpointer) Checkpoint(chainID uint64, block uint64, batch *types.BatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals = append(r.totals, batch.Total())
	return r.err
}

func twoOwnerSafe() *types.StorageFieldSet {
	fields := types.NewStorageFieldSet()
	fields.Singleton = singleton141
	fields.Owners = []common.Address{ownerA, ownerB}
	fields.Threshold = big.NewInt(2)
	fields.Fallback = fallback141
	return fields
}

func approveEvents() *types.Events {
	return &types.Events{ApproveHash: []gethtypes.Log{{
		Topics: []common.Hash{serialization.ApproveHashTopic, approvedH, common.BytesToHash(ownerB.Bytes())},
	}}}
}

func newTestVerifier(t *testing.T, chain Chain, cfg Config) *Verifier {
	cache, err := deployments.NewVersionCache(deployments.Default(), 16)
	require.NoError(t, err)
	return New(chain, cache, cfg).WithLogger(log.Nop())
}

func addr(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

func TestVerifyGoldenRoot(t *testing.T) {
	chain := newFakeChain()
	chain.accounts[addr(1)] = &account{singleton: singleton141, fields: twoOwnerSafe, root: rootA}

	result, err := newTestVerifier(t, chain, Config{CrossCheck: true}).Verify(context.Background(), addr(1), 100)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, result.Status)
	assert.True(t, result.Matched)
	assert.Equal(t, "1.4.1", result.Version)
	assert.Equal(t, rootA, result.Actual)
	assert.Equal(t, rootA, result.Expected)
	assert.Equal(t, uint64(100), result.BlockNumber)
}

func TestVerifyWithEvents(t *testing.T) {
	chain := newFakeChain()
	chain.accounts[addr(1)] = &account{singleton: singleton141, fields: twoOwnerSafe, events: approveEvents(), root: rootB}

	result, err := newTestVerifier(t, chain, Config{}).Verify(context.Background(), addr(1), 100)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, result.Status)
	assert.Equal(t, rootB, result.Actual)
	assert.Equal(t, 1, chain.eventCalls)
}

func TestVerifyMismatch(t *testing.T) {
	chain := newFakeChain()
	// the chain has the approval, the events do not
	chain.accounts[addr(1)] = &account{singleton: singleton141, fields: twoOwnerSafe, root: rootB}

	result, err := newTestVerifier(t, chain, Config{}).Verify(context.Background(), addr(1), 100)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMismatch, result.Status)
	assert.False(t, result.Matched)
	assert.Equal(t, rootA, result.Actual)
	assert.Equal(t, rootB, result.Expected)
}

func TestVerifyClassification(t *testing.T) {
	chain := newFakeChain()
	chain.accounts[addr(1)] = &account{singleton: singleton120}
	chain.accounts[addr(2)] = &account{singleton: singleton141, fieldErr: errRPC}
	chain.accounts[addr(3)] = &account{singleton: singleton141, fields: types.NewStorageFieldSet}
	v := newTestVerifier(t, chain, Config{})

	result, err := v.Verify(context.Background(), addr(0), 100)
	assert.ErrorIs(t, err, ErrNotASafe)
	assert.Equal(t, types.StatusNotASafe, result.Status)

	result, err = v.Verify(context.Background(), addr(1), 100)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.Equal(t, types.StatusUnsupported, result.Status)
	assert.Equal(t, "1.2.0", result.Version)

	result, err = v.Verify(context.Background(), addr(2), 100)
	assert.ErrorIs(t, err, errRPC)
	assert.Equal(t, types.StatusError, result.Status)
	assert.Contains(t, result.Err, "503")

	result, err = v.Verify(context.Background(), addr(3), 100)
	assert.ErrorIs(t, err, ErrNotASafe)
	assert.Equal(t, types.StatusNotASafe, result.Status)
}

func TestVerifyUsesEventSource(t *testing.T) {
	chain := newFakeChain()
	chain.accounts[addr(1)] = &account{singleton: singleton141, fields: twoOwnerSafe, root: rootB}
	v := newTestVerifier(t, chain, Config{}).WithEventSource(eventMap{addr(1): approveEvents()})

	result, err := v.Verify(context.Background(), addr(1), 100)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, result.Status)
	assert.Equal(t, 0, chain.eventCalls)
}

func batchChain(n int) (*fakeChain, []common.Address) {
	chain := newFakeChain()
	safes := make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		a := &account{singleton: singleton141, fields: twoOwnerSafe, root: rootA}
		switch i % 5 {
		case 1:
			a.root = rootB
		case 2:
			a.singleton = singleton120
		case 3:
			a.singleton = common.Address{}
		case 4:
			a.fieldErr = fmt.Errorf("account %d: %w", i, errRPC)
		}
		chain.accounts[addr(i)] = a
		safes = append(safes, addr(i))
	}
	return chain, safes
}

func TestVerifyAll(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			chain, safes := batchChain(25)
			cp := &recordingCheckpointer{}
			v := newTestVerifier(t, chain, Config{Concurrency: concurrency, CheckpointInterval: 10}).WithCheckpointer(cp)

			batch, err := v.VerifyAll(context.Background(), safes, 100)
			require.NoError(t, err)
			assert.Equal(t, 25, batch.Total())
			counts := batch.Counts()
			for _, status := range types.AllStatuses() {
				assert.Equal(t, 5, counts[status], status.String())
			}

			// input order is kept
			for i, result := range batch.Success {
				assert.Equal(t, addr(i*5), result.Address)
			}
			assert.Equal(t, []int{10, 20, 25}, cp.totals)
			assert.LessOrEqual(t, chain.maxParallel, concurrency)
		})
	}
}

func TestVerifyAllAccountTimeout(t *testing.T) {
	chain, safes := batchChain(5)
	chain.accounts[addr(0)].block = true
	v := newTestVerifier(t, chain, Config{AccountTimeout: 20 * time.Millisecond})

	batch, err := v.VerifyAll(context.Background(), safes, 100)
	require.NoError(t, err)
	require.Len(t, batch.Error, 2)
	assert.Equal(t, addr(0), batch.Error[0].Address)
	assert.Contains(t, batch.Error[0].Err, context.DeadlineExceeded.Error())
	assert.Len(t, batch.Mismatch, 1)
}

func TestVerifyAllCheckpointFailure(t *testing.T) {
	chain, safes := batchChain(30)
	cp := &recordingCheckpointer{err: errors.New("disk full")}
	v := newTestVerifier(t, chain, Config{CheckpointInterval: 5}).WithCheckpointer(cp)

	batch, err := v.VerifyAll(context.Background(), safes, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Less(t, batch.Total(), 30)
}

func TestVerifyAllCancelled(t *testing.T) {
	chain, safes := batchChain(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := newTestVerifier(t, chain, Config{}).VerifyAll(ctx, safes, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, batch.Total())
}
