package storage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celer-network/safe-storage-verifier/serialization"
	"github.com/celer-network/safe-storage-verifier/trie"
)

// Slots that are not plain indices. Both are keccak256 of an identifier string,
// defined by GuardManager and FallbackManager.
var (
	// keccak256("guard_manager.guard.address")
	GuardSlot = common.HexToHash("0x4a204f620c8c5ccdca3fd54d003badd85ba500436a431f0cbda4f558c93c34c8")
	// keccak256("fallback_manager.handler.address")
	FallbackHandlerSlot = common.HexToHash("0x6c9a6c4a39284e37ed1cf53d337577d14212a4870fb976a4366c693b939918d5")
)

var ErrUnknownLayout = errors.New("no storage layout for version")

// Layout is the storage index of every Safe state variable for one contract version.
type Layout struct {
	Singleton      uint64
	Modules        uint64
	Owners         uint64
	OwnerCount     uint64
	Threshold      uint64
	Nonce          uint64
	Separator      uint64
	SignedMessages uint64
	ApprovedHashes uint64
}

// SafeLayout is the layout shared by Safe 1.3.0 and 1.4.1:
//
//	0 singleton
//	1 mapping(address => address) modules
//	2 mapping(address => address) owners
//	3 uint256 ownerCount
//	4 uint256 threshold
//	5 uint256 nonce
//	6 bytes32 _deprecatedDomainSeparator
//	7 mapping(bytes32 => uint256) signedMessages
//	8 mapping(address => mapping(bytes32 => uint256)) approvedHashes
var SafeLayout = Layout{
	Singleton:      0,
	Modules:        1,
	Owners:         2,
	OwnerCount:     3,
	Threshold:      4,
	Nonce:          5,
	Separator:      6,
	SignedMessages: 7,
	ApprovedHashes: 8,
}

var layouts = map[string]Layout{
	"1.3.0": SafeLayout,
	"1.4.1": SafeLayout,
}

// LayoutForVersion returns the layout of a Safe version.
func LayoutForVersion(version string) (Layout, error) {
	layout, ok := layouts[version]
	if !ok {
		return Layout{}, fmt.Errorf("%w %q", ErrUnknownLayout, version)
	}
	return layout, nil
}

// IndexSlot returns the slot of a state variable stored directly at index.
func IndexSlot(index uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(index))
}

// MappingSlot returns the slot of mapping(address => ...)[key] declared at index,
// keccak256(abi.encode(key, index)).
func MappingSlot(key common.Address, index uint64) common.Hash {
	return trie.HashOf(serialization.EncodeAddressAndSlot(key, IndexSlot(index)))
}

// HashMappingSlot returns the slot of mapping(bytes32 => ...)[key] declared at index,
// keccak256(key ‖ index).
func HashMappingSlot(key common.Hash, index uint64) common.Hash {
	return trie.HashOf(key.Bytes(), IndexSlot(index).Bytes())
}

func (l Layout) SingletonSlot() common.Hash  { return IndexSlot(l.Singleton) }
func (l Layout) OwnerCountSlot() common.Hash { return IndexSlot(l.OwnerCount) }
func (l Layout) ThresholdSlot() common.Hash  { return IndexSlot(l.Threshold) }
func (l Layout) NonceSlot() common.Hash      { return IndexSlot(l.Nonce) }
func (l Layout) SeparatorSlot() common.Hash  { return IndexSlot(l.Separator) }

// ModuleSlot is the slot of modules[module].
func (l Layout) ModuleSlot(module common.Address) common.Hash {
	return MappingSlot(module, l.Modules)
}

// OwnerSlot is the slot of owners[owner].
func (l Layout) OwnerSlot(owner common.Address) common.Hash {
	return MappingSlot(owner, l.Owners)
}

// SignedMessageSlot is the slot of signedMessages[msgHash].
func (l Layout) SignedMessageSlot(msgHash common.Hash) common.Hash {
	return HashMappingSlot(msgHash, l.SignedMessages)
}

// ApprovedHashSlot is the slot of approvedHashes[owner][hash]. The outer mapping is
// keyed by owner, so the owner is hashed with the declaration index first and the
// hash is applied to the result: keccak256(hash ‖ keccak256(abi.encode(owner, index))).
func (l Layout) ApprovedHashSlot(owner common.Address, hash common.Hash) common.Hash {
	inner := MappingSlot(owner, l.ApprovedHashes)
	return trie.HashOf(hash.Bytes(), inner.Bytes())
}
