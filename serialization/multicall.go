package serialization

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Call3 is one Multicall3.aggregate3 call. Field names follow the abi component names.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result3 is one Multicall3.aggregate3 return entry.
type Result3 struct {
	Success    bool
	ReturnData []byte
}

var ErrCallFailed = errors.New("call reverted")

// PackAggregate3 encodes an aggregate3 call.
func PackAggregate3(calls []Call3) ([]byte, error) {
	return MulticallABI.Pack("aggregate3", calls)
}

// UnpackAggregate3 decodes the return data of aggregate3.
func UnpackAggregate3(data []byte) ([]Result3, error) {
	values, err := MulticallABI.Unpack("aggregate3", data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("aggregate3 returned %d values", len(values))
	}
	results := *abi.ConvertType(values[0], new([]Result3)).(*[]Result3)
	return results, nil
}

// PackSafeCall encodes a Safe getter call.
func PackSafeCall(method string, args ...interface{}) []byte {
	data, err := SafeABI.Pack(method, args...)
	if err != nil {
		// methods and argument types are fixed at the call sites
		panic(fmt.Sprintf("pack %s: %v", method, err))
	}
	return data
}

// UnpackStorageWord decodes getStorageAt(slot, 1) into the single 32 byte word read.
func UnpackStorageWord(r Result3) (common.Hash, error) {
	if !r.Success {
		return common.Hash{}, ErrCallFailed
	}
	values, err := SafeABI.Unpack("getStorageAt", r.ReturnData)
	if err != nil {
		return common.Hash{}, err
	}
	raw := values[0].([]byte)
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("getStorageAt returned %d bytes", len(raw))
	}
	return common.BytesToHash(raw), nil
}

// UnpackAddresses decodes getOwners and the first output of getModulesPaginated.
func UnpackAddresses(method string, r Result3) ([]common.Address, error) {
	if !r.Success {
		return nil, ErrCallFailed
	}
	values, err := SafeABI.Unpack(method, r.ReturnData)
	if err != nil {
		return nil, err
	}
	return values[0].([]common.Address), nil
}

// UnpackUint decodes single uint256 getters such as getThreshold and nonce.
func UnpackUint(method string, r Result3) (*big.Int, error) {
	if !r.Success {
		return nil, ErrCallFailed
	}
	values, err := SafeABI.Unpack(method, r.ReturnData)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}
