// Package trie commits a set of storage slot entries to the root of a key hashed
// Merkle-Patricia trie, the same structure an account storage root is computed over.
package trie

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"

	"github.com/celer-network/safe-storage-verifier/types"
)

var (
	ErrNilValue           = errors.New("slot entry without value")
	ErrConflictingEntries = errors.New("slot written twice with different values")
)

// EmptyRoot is the root of a storage trie without entries.
var EmptyRoot = gethtypes.EmptyRootHash

// IsAbsent reports whether a slot with this value is missing from a storage trie.
// Storage never holds an explicit zero: clearing a slot deletes its trie node.
func IsAbsent(value *uint256.Int) bool {
	return value.IsZero()
}

// EncodeValue returns the trie payload of a storage value, the RLP string of its
// big-endian bytes without leading zeros.
func EncodeValue(value *uint256.Int) ([]byte, error) {
	if value == nil {
		return nil, ErrNilValue
	}
	return rlp.EncodeToBytes(value.Bytes())
}

// collapse validates entries and folds duplicates. The same slot may be listed more
// than once only with the same value.
func collapse(entries []types.SlotEntry) (map[common.Hash]*uint256.Int, error) {
	values := make(map[common.Hash]*uint256.Int, len(entries))
	for _, entry := range entries {
		if entry.Value == nil {
			return nil, fmt.Errorf("%w: slot %s", ErrNilValue, entry.Key.Hex())
		}
		if prev, ok := values[entry.Key]; ok && !prev.Eq(entry.Value) {
			return nil, fmt.Errorf("%w: slot %s has %s and %s", ErrConflictingEntries, entry.Key.Hex(), prev.Hex(), entry.Value.Hex())
		}
		values[entry.Key] = entry.Value
	}
	return values, nil
}

// Commit builds a storage trie from entries and returns its root. Keys are hashed by
// the trie. Zero values are deleted instead of stored. The result does not depend on
// the order of entries.
func Commit(entries []types.SlotEntry) (common.Hash, error) {
	values, err := collapse(entries)
	if err != nil {
		return common.Hash{}, err
	}

	db := triedb.NewDatabase(rawdb.NewMemoryDatabase(), triedb.HashDefaults)
	defer db.Close()

	st, err := gethtrie.NewStateTrie(gethtrie.StateTrieID(EmptyRoot), db)
	if err != nil {
		return common.Hash{}, err
	}

	for key, value := range values {
		if IsAbsent(value) {
			st.MustDelete(key.Bytes())
			continue
		}
		encoded, err := EncodeValue(value)
		if err != nil {
			return common.Hash{}, err
		}
		st.MustUpdate(key.Bytes(), encoded)
	}
	return st.Hash(), nil
}

// StackCommit computes the same root as Commit with a stack trie, which needs the
// hashed keys in ascending order. It never holds more than one path in memory and is
// used to cross-check Commit.
func StackCommit(entries []types.SlotEntry) (common.Hash, error) {
	values, err := collapse(entries)
	if err != nil {
		return common.Hash{}, err
	}

	sorted := make(hashedEntries, 0, len(values))
	for key, value := range values {
		if IsAbsent(value) {
			continue
		}
		encoded, err := EncodeValue(value)
		if err != nil {
			return common.Hash{}, err
		}
		sorted = append(sorted, hashedEntry{path: Hasher(key.Bytes()), value: encoded})
	}
	sort.Sort(sorted)

	st := gethtrie.NewStackTrie(nil)
	for _, entry := range sorted {
		if err := st.Update(entry.path, entry.value); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}
