// Package storage maps the decoded state of a Safe onto the storage slots the
// contract writes, following solidity's layout rules for each contract version.
package storage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/celer-network/safe-storage-verifier/serialization"
	"github.com/celer-network/safe-storage-verifier/types"
)

var (
	ErrMissingField = errors.New("field set is missing a value")
	ErrOverflow     = errors.New("value does not fit in a storage word")
	ErrSlotConflict = errors.New("two fields derive the same slot with different values")
)

// entryList accumulates entries and rejects a slot derived twice with different values.
type entryList struct {
	entries []types.SlotEntry
	index   map[common.Hash]int
}

func newEntryList() *entryList {
	return &entryList{index: make(map[common.Hash]int)}
}

func (l *entryList) add(key common.Hash, value *uint256.Int) error {
	if i, ok := l.index[key]; ok {
		if !l.entries[i].Value.Eq(value) {
			return fmt.Errorf("%w: %s", ErrSlotConflict, key.Hex())
		}
		return nil
	}
	l.index[key] = len(l.entries)
	l.entries = append(l.entries, types.SlotEntry{Key: key, Value: value})
	return nil
}

func addressValue(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}

func hashValue(hash common.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes(hash.Bytes())
}

func bigValue(name string, v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	value, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s = %s", ErrOverflow, name, v)
	}
	return value, nil
}

// DeriveSlotEntries returns every storage slot the Safe in fields has written, in a
// fixed order: singleton, module list, owner list, owner count, threshold, nonce,
// separator, signed messages, approved hashes, guard, fallback handler. Zero values
// are kept; the trie treats them as absent.
func DeriveSlotEntries(layout Layout, fields *types.StorageFieldSet) ([]types.SlotEntry, error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: nil field set", ErrMissingField)
	}
	threshold, err := bigValue("threshold", fields.Threshold)
	if err != nil {
		return nil, err
	}
	nonce, err := bigValue("nonce", fields.Nonce)
	if err != nil {
		return nil, err
	}

	l := newEntryList()
	if err := l.add(layout.SingletonSlot(), addressValue(fields.Singleton)); err != nil {
		return nil, err
	}
	for _, pair := range ReconstructLinkedList(fields.Modules) {
		if err := l.add(layout.ModuleSlot(pair.Key), addressValue(pair.Next)); err != nil {
			return nil, err
		}
	}
	for _, pair := range ReconstructLinkedList(fields.Owners) {
		if err := l.add(layout.OwnerSlot(pair.Key), addressValue(pair.Next)); err != nil {
			return nil, err
		}
	}
	if err := l.add(layout.OwnerCountSlot(), uint256.NewInt(uint64(len(fields.Owners)))); err != nil {
		return nil, err
	}
	if err := l.add(layout.ThresholdSlot(), threshold); err != nil {
		return nil, err
	}
	if err := l.add(layout.NonceSlot(), nonce); err != nil {
		return nil, err
	}
	if err := l.add(layout.SeparatorSlot(), hashValue(fields.Separator)); err != nil {
		return nil, err
	}
	if fields.SignedMessageHashes != nil {
		for _, msgHash := range fields.SignedMessageHashes.ToSlice() {
			if err := l.add(layout.SignedMessageSlot(msgHash), uint256.NewInt(1)); err != nil {
				return nil, err
			}
		}
	}
	if fields.ApprovedHashes != nil {
		for _, approved := range fields.ApprovedHashes.ToSlice() {
			if err := l.add(layout.ApprovedHashSlot(approved.Owner, approved.Hash), uint256.NewInt(1)); err != nil {
				return nil, err
			}
		}
	}
	if err := l.add(GuardSlot, addressValue(fields.Guard)); err != nil {
		return nil, err
	}
	if err := l.add(FallbackHandlerSlot, addressValue(fields.Fallback)); err != nil {
		return nil, err
	}
	return l.entries, nil
}

// FieldsFromEvents decodes SignMsg and ApproveHash logs into the signed message and
// approved hash sets of fields. Repeated events collapse into one entry.
func FieldsFromEvents(fields *types.StorageFieldSet, events *types.Events) error {
	if events == nil {
		return nil
	}
	if fields.SignedMessageHashes == nil || fields.ApprovedHashes == nil {
		return fmt.Errorf("%w: hash sets not initialised", ErrMissingField)
	}
	for i := range events.SignMsg {
		ev, err := serialization.DecodeSignMsg(&events.SignMsg[i])
		if err != nil {
			return logError(&events.SignMsg[i], err)
		}
		fields.SignedMessageHashes.Add(ev.MsgHash)
	}
	for i := range events.ApproveHash {
		ev, err := serialization.DecodeApproveHash(&events.ApproveHash[i])
		if err != nil {
			return logError(&events.ApproveHash[i], err)
		}
		fields.ApprovedHashes.Add(types.ApprovedHash{Owner: ev.Owner, Hash: ev.Hash})
	}
	return nil
}

func logError(log *gethtypes.Log, err error) error {
	return fmt.Errorf("log %d of tx %s: %w", log.Index, log.TxHash.Hex(), err)
}
