// Package serialization holds the contract ABIs used by the verifier and the abi
// encoding / decoding helpers built on them.
package serialization

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const safeABIJSON = `[
{"type":"function","name":"getStorageAt","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"length","type":"uint256"}],"outputs":[{"name":"","type":"bytes"}]},
{"type":"function","name":"getModulesPaginated","stateMutability":"view","inputs":[{"name":"start","type":"address"},{"name":"pageSize","type":"uint256"}],"outputs":[{"name":"array","type":"address[]"},{"name":"next","type":"address"}]},
{"type":"function","name":"getOwners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"getThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"nonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"VERSION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"event","name":"SignMsg","anonymous":false,"inputs":[{"name":"msgHash","type":"bytes32","indexed":true}]},
{"type":"event","name":"ApproveHash","anonymous":false,"inputs":[{"name":"approvedHash","type":"bytes32","indexed":true},{"name":"owner","type":"address","indexed":true}]}
]`

const multicallABIJSON = `[
{"type":"function","name":"aggregate3","stateMutability":"payable","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"allowFailure","type":"bool"},{"name":"callData","type":"bytes"}]}],"outputs":[{"name":"returnData","type":"tuple[]","components":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}]}]},
{"type":"function","name":"getBlockNumber","stateMutability":"view","inputs":[],"outputs":[{"name":"blockNumber","type":"uint256"}]}
]`

const proxyFactoryABIJSON = `[
{"type":"event","name":"ProxyCreation","anonymous":false,"inputs":[{"name":"proxy","type":"address","indexed":false},{"name":"singleton","type":"address","indexed":false}]}
]`

var (
	// SafeABI covers the Safe getters and events read by the verifier.
	SafeABI = mustParse(safeABIJSON)
	// MulticallABI is the subset of Multicall3 used for batched reads.
	MulticallABI = mustParse(multicallABIJSON)
	// ProxyFactoryABI decodes ProxyCreation logs.
	ProxyFactoryABI = mustParse(proxyFactoryABIJSON)

	// MulticallAddress is the Multicall3 deployment shared by most EVM chains.
	MulticallAddress = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

	addressBytes32Arguments = mustArguments("address", "bytes32")
	addressPairArguments    = mustArguments("address", "address")
	addressArguments        = mustArguments("address")
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func mustArguments(typeNames ...string) abi.Arguments {
	arguments := make(abi.Arguments, 0, len(typeNames))
	for _, name := range typeNames {
		t, err := abi.NewType(name, "", nil)
		if err != nil {
			panic(err)
		}
		arguments = append(arguments, abi.Argument{Type: t})
	}
	return arguments
}

// EncodeAddressAndSlot returns abi.encode(address key, bytes32 slot), the preimage
// solidity hashes to locate mapping(address => ...) entries.
func EncodeAddressAndSlot(key common.Address, slot common.Hash) []byte {
	packed, err := addressBytes32Arguments.Pack(key, [32]byte(slot))
	if err != nil {
		// both arguments have fixed static types, packing cannot fail
		panic(err)
	}
	return packed
}

// EncodeAddress returns abi.encode(address), the address left padded to 32 bytes.
func EncodeAddress(key common.Address) []byte {
	packed, err := addressArguments.Pack(key)
	if err != nil {
		panic(err)
	}
	return packed
}
