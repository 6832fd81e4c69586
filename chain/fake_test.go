package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"

	"github.com/celer-network/safe-storage-verifier/log"
)

var errRangeTooWide = errors.New("query exceeds max block range 1000")

// fakeBackend serves canned chain data. FilterLogs applies the address and topic
// filters and rejects ranges wider than logLimit.
type fakeBackend struct {
	mu sync.Mutex

	chainID  uint64
	head     uint64
	headers  map[uint64]*gethtypes.Header
	storage  map[common.Address]map[common.Hash]common.Hash
	callOut  []byte
	callErr  error
	logs     []gethtypes.Log
	logLimit uint64

	calls      []ethereum.CallMsg
	logQueries int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  1,
		head:     20_000,
		headers:  make(map[uint64]*gethtypes.Header),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		logLimit: 1000,
	}
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(b.chainID), nil
}

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return b.head, nil
}

func (b *fakeBackend) HeaderByNumber(_ context.Context, number *big.Int) (*gethtypes.Header, error) {
	header, ok := b.headers[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return header, nil
}

func (b *fakeBackend) StorageAt(_ context.Context, account common.Address, key common.Hash, _ *big.Int) ([]byte, error) {
	return b.storage[account][key].Bytes(), nil
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	return b.callOut, b.callErr
}

func matchesTopics(l gethtypes.Log, topics [][]common.Hash) bool {
	for i, alternatives := range topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		found := false
		for _, topic := range alternatives {
			if l.Topics[i] == topic {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (b *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logQueries++

	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	if to-from+1 > b.logLimit {
		return nil, errRangeTooWide
	}
	var out []gethtypes.Log
	for _, l := range b.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 {
			found := false
			for _, addr := range q.Addresses {
				if addr == l.Address {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		if matchesTopics(l, q.Topics) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeProofs struct {
	results map[common.Address]*gethclient.AccountResult
}

func (p *fakeProofs) GetProof(_ context.Context, account common.Address, _ []string, _ *big.Int) (*gethclient.AccountResult, error) {
	result, ok := p.results[account]
	if !ok {
		return nil, errors.New("missing trie node")
	}
	return result, nil
}

func newTestClient(backend *fakeBackend, proofs *fakeProofs, opts Options) *Client {
	c := NewClient(backend.chainID, backend, proofs, opts)
	c.logger = log.Nop()
	return c
}
