package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
)

var (
	ErrProofMismatch = errors.New("account proof does not match")
	ErrNoProof       = errors.New("no proof returned")
)

// VerifyAccountProof checks that result proves an account under stateRoot and that
// the proven account has the reported storage root.
func VerifyAccountProof(stateRoot common.Hash, result *gethclient.AccountResult) error {
	proofDB := rawdb.NewMemoryDatabase()
	defer proofDB.Close()
	for _, node := range result.AccountProof {
		data, err := hexutil.Decode(node)
		if err != nil {
			return fmt.Errorf("%w: proof node %q: %v", ErrProofMismatch, node, err)
		}
		if err := proofDB.Put(crypto.Keccak256(data), data); err != nil {
			return err
		}
	}

	value, err := gethtrie.VerifyProof(stateRoot, crypto.Keccak256(result.Address.Bytes()), proofDB)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProofMismatch, result.Address.Hex(), err)
	}
	if value == nil {
		// absent accounts have an empty storage trie
		if result.StorageHash != gethtypes.EmptyRootHash && result.StorageHash != (common.Hash{}) {
			return fmt.Errorf("%w: %s is not in the state trie", ErrProofMismatch, result.Address.Hex())
		}
		return nil
	}

	var account gethtypes.StateAccount
	if err := rlp.DecodeBytes(value, &account); err != nil {
		return fmt.Errorf("%w: decode account: %v", ErrProofMismatch, err)
	}
	if account.Root != result.StorageHash {
		return fmt.Errorf("%w: storage hash %s, proven %s", ErrProofMismatch, result.StorageHash.Hex(), account.Root.Hex())
	}
	if account.Nonce != result.Nonce {
		return fmt.Errorf("%w: nonce %d, proven %d", ErrProofMismatch, result.Nonce, account.Nonce)
	}
	return nil
}

// ProofRoot returns the storage root of safe at block from eth_getProof. With
// VerifyProofs set, the account proof is checked against the block's state root.
func (c *Client) ProofRoot(ctx context.Context, safe common.Address, block uint64) (common.Hash, error) {
	number := new(big.Int).SetUint64(block)
	result, err := c.proofs.GetProof(ctx, safe, []string{}, number)
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_getProof for %s: %w", safe.Hex(), err)
	}
	if result == nil {
		return common.Hash{}, fmt.Errorf("%w for %s", ErrNoProof, safe.Hex())
	}
	if result.Address != safe {
		return common.Hash{}, fmt.Errorf("%w: asked for %s, got %s", ErrProofMismatch, safe.Hex(), result.Address.Hex())
	}

	if c.opts.VerifyProofs {
		header, err := c.backend.HeaderByNumber(ctx, number)
		if err != nil {
			return common.Hash{}, fmt.Errorf("header %d: %w", block, err)
		}
		if err := VerifyAccountProof(header.Root, result); err != nil {
			return common.Hash{}, err
		}
	}
	return result.StorageHash, nil
}
