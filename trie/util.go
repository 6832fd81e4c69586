package trie

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

const HashLength = common.HashLength

// Hasher is the keccak-256 used for storage slot keys, both when a slot is derived
// from a mapping key and when the trie hashes the slot into its path.
var Hasher = func(data ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	for i := 0; i < len(data); i++ {
		hasher.Write(data[i])
	}
	return hasher.Sum(nil)
}

// HashOf is Hasher returning a common.Hash.
func HashOf(data ...[]byte) common.Hash {
	return common.BytesToHash(Hasher(data...))
}

// for sorting entries by hashed key
type hashedEntries []hashedEntry

type hashedEntry struct {
	path  []byte
	value []byte
}

func (d hashedEntries) Len() int {
	return len(d)
}
func (d hashedEntries) Swap(i, j int) {
	d[i], d[j] = d[j], d[i]
}
func (d hashedEntries) Less(i, j int) bool {
	return bytes.Compare(d[i].path, d[j].path) == -1
}
