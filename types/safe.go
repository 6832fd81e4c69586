package types

import (
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// SentinelAddress is the head and tail marker of the owner and module linked lists.
var SentinelAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")

// ApprovedHash is one approvedHashes[owner][hash] write.
type ApprovedHash struct {
	Owner common.Address
	Hash  common.Hash
}

// StorageFieldSet is the decoded state of one Safe at one block.
type StorageFieldSet struct {
	Singleton common.Address
	Modules   []common.Address
	Owners    []common.Address
	Threshold *big.Int
	Nonce     *big.Int
	Separator common.Hash
	Guard     common.Address
	Fallback  common.Address

	SignedMessageHashes mapset.Set[common.Hash]
	ApprovedHashes      mapset.Set[ApprovedHash]
}

// NewStorageFieldSet returns a field set with zero scalars and empty hash sets.
func NewStorageFieldSet() *StorageFieldSet {
	return &StorageFieldSet{
		Threshold:           new(big.Int),
		Nonce:               new(big.Int),
		SignedMessageHashes: mapset.NewThreadUnsafeSet[common.Hash](),
		ApprovedHashes:      mapset.NewThreadUnsafeSet[ApprovedHash](),
	}
}

// IsEmpty reports the sentinel state returned for addresses that are not Safes.
func (f *StorageFieldSet) IsEmpty() bool {
	return f.Singleton == (common.Address{}) && len(f.Owners) == 0
}

// SignMsgEvent is a decoded SignMsg(bytes32 indexed msgHash) log.
type SignMsgEvent struct {
	MsgHash common.Hash
}

// ApproveHashEvent is a decoded ApproveHash(bytes32 indexed approvedHash, address indexed owner) log.
type ApproveHashEvent struct {
	Hash  common.Hash
	Owner common.Address
}

// Events holds the raw SignMsg and ApproveHash logs emitted by one Safe.
type Events struct {
	SignMsg     []gethtypes.Log
	ApproveHash []gethtypes.Log
}

// Len returns the total number of logs.
func (e *Events) Len() int {
	if e == nil {
		return 0
	}
	return len(e.SignMsg) + len(e.ApproveHash)
}

// SlotEntry is one storage cell: a 32 byte slot key and its value as an unsigned integer.
type SlotEntry struct {
	Key   common.Hash
	Value *uint256.Int
}

// LinkedListPair is one write of a sentinel linked list: mapping[Key] = Next.
type LinkedListPair struct {
	Key  common.Address
	Next common.Address
}

// SafeDeployment is a proxy found through a ProxyCreation event.
type SafeDeployment struct {
	Address     common.Address `yaml:"address" json:"address"`
	Mastercopy  common.Address `yaml:"mastercopy" json:"mastercopy"`
	BlockNumber uint64         `yaml:"blockNumber" json:"blockNumber"`
}
