package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celer-network/safe-storage-verifier/types"
)

var (
	ErrDanglingPointer = errors.New("linked list points to a missing entry")
	ErrCycle           = errors.New("linked list does not return to the sentinel")
	ErrDuplicateKey    = errors.New("linked list writes the same key twice")
)

// ReconstructLinkedList returns the mapping writes a Safe keeps for an ordered
// owner or module list: (SENTINEL, e0), (e0, e1) ... (en-1, SENTINEL). An empty list is
// the single pair (SENTINEL, SENTINEL).
func ReconstructLinkedList(items []common.Address) []types.LinkedListPair {
	pairs := make([]types.LinkedListPair, 0, len(items)+1)
	prev := types.SentinelAddress
	for _, item := range items {
		pairs = append(pairs, types.LinkedListPair{Key: prev, Next: item})
		prev = item
	}
	return append(pairs, types.LinkedListPair{Key: prev, Next: types.SentinelAddress})
}

// Traverse walks pairs from the sentinel the way the contract getters do and returns
// the items in list order.
func Traverse(pairs []types.LinkedListPair) ([]common.Address, error) {
	next := make(map[common.Address]common.Address, len(pairs))
	for _, pair := range pairs {
		if _, ok := next[pair.Key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, pair.Key.Hex())
		}
		next[pair.Key] = pair.Next
	}

	items := make([]common.Address, 0, len(pairs))
	cursor := types.SentinelAddress
	for steps := 0; ; steps++ {
		following, ok := next[cursor]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDanglingPointer, cursor.Hex())
		}
		if following == types.SentinelAddress {
			break
		}
		if steps >= len(pairs) {
			return nil, ErrCycle
		}
		items = append(items, following)
		cursor = following
	}
	return items, nil
}
