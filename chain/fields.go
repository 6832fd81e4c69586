package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/celer-network/safe-storage-verifier/serialization"
	"github.com/celer-network/safe-storage-verifier/storage"
	"github.com/celer-network/safe-storage-verifier/types"
)

// modulesPageSize is large enough to read every module in one page.
var modulesPageSize = big.NewInt(10000)

// order of the aggregate3 batch
const (
	callSingleton = iota
	callModules
	callOwners
	callThreshold
	callNonce
	callSeparator
	callGuard
	callFallback
	numFieldCalls
)

func storageCall(slot common.Hash) []byte {
	return serialization.PackSafeCall("getStorageAt", slot.Big(), common.Big1)
}

// fieldCalls builds the aggregate3 batch reading every Safe field.
func fieldCalls(safe common.Address) []serialization.Call3 {
	layout := storage.SafeLayout
	data := [numFieldCalls][]byte{
		callSingleton: storageCall(layout.SingletonSlot()),
		callModules:   serialization.PackSafeCall("getModulesPaginated", types.SentinelAddress, modulesPageSize),
		callOwners:    serialization.PackSafeCall("getOwners"),
		callThreshold: serialization.PackSafeCall("getThreshold"),
		callNonce:     serialization.PackSafeCall("nonce"),
		callSeparator: storageCall(layout.SeparatorSlot()),
		callGuard:     storageCall(storage.GuardSlot),
		callFallback:  storageCall(storage.FallbackHandlerSlot),
	}
	calls := make([]serialization.Call3, 0, numFieldCalls)
	for _, callData := range data {
		calls = append(calls, serialization.Call3{Target: safe, AllowFailure: true, CallData: callData})
	}
	return calls
}

// decodeFields turns aggregate3 results into a field set. A failed singleton read
// means the target is not a Safe and yields the empty field set.
func decodeFields(results []serialization.Result3) (*types.StorageFieldSet, error) {
	if len(results) != numFieldCalls {
		return nil, fmt.Errorf("aggregate3 returned %d results, expected %d", len(results), numFieldCalls)
	}
	fields := types.NewStorageFieldSet()
	if !results[callSingleton].Success {
		return fields, nil
	}

	singleton, err := serialization.UnpackStorageWord(results[callSingleton])
	if err != nil {
		return nil, fmt.Errorf("singleton: %w", err)
	}
	fields.Singleton = common.BytesToAddress(singleton.Bytes())
	if fields.Modules, err = serialization.UnpackAddresses("getModulesPaginated", results[callModules]); err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	if fields.Owners, err = serialization.UnpackAddresses("getOwners", results[callOwners]); err != nil {
		return nil, fmt.Errorf("owners: %w", err)
	}
	if fields.Threshold, err = serialization.UnpackUint("getThreshold", results[callThreshold]); err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	if fields.Nonce, err = serialization.UnpackUint("nonce", results[callNonce]); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	if fields.Separator, err = serialization.UnpackStorageWord(results[callSeparator]); err != nil {
		return nil, fmt.Errorf("separator: %w", err)
	}
	guard, err := serialization.UnpackStorageWord(results[callGuard])
	if err != nil {
		return nil, fmt.Errorf("guard: %w", err)
	}
	fields.Guard = common.BytesToAddress(guard.Bytes())
	fallback, err := serialization.UnpackStorageWord(results[callFallback])
	if err != nil {
		return nil, fmt.Errorf("fallback handler: %w", err)
	}
	fields.Fallback = common.BytesToAddress(fallback.Bytes())
	return fields, nil
}

// FieldSet reads the decoded state of safe at block with one Multicall3 call.
func (c *Client) FieldSet(ctx context.Context, safe common.Address, block uint64) (*types.StorageFieldSet, error) {
	input, err := serialization.PackAggregate3(fieldCalls(safe))
	if err != nil {
		return nil, err
	}
	to := serialization.MulticallAddress
	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, fmt.Errorf("aggregate3 for %s: %w", safe.Hex(), err)
	}
	results, err := serialization.UnpackAggregate3(output)
	if err != nil {
		return nil, fmt.Errorf("aggregate3 for %s: %w", safe.Hex(), err)
	}
	fields, err := decodeFields(results)
	if err != nil {
		return nil, fmt.Errorf("fields of %s: %w", safe.Hex(), err)
	}
	return fields, nil
}
