// Package chain reads Safe state, logs and storage proofs from an Ethereum JSON-RPC
// endpoint.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/celer-network/safe-storage-verifier/config"
	"github.com/celer-network/safe-storage-verifier/log"
)

// Backend is the part of ethclient.Client used by Client.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
}

// ProofBackend serves eth_getProof, gethclient.Client satisfies it.
type ProofBackend interface {
	GetProof(ctx context.Context, account common.Address, keys []string, blockNumber *big.Int) (*gethclient.AccountResult, error)
}

type Options struct {
	// MaxBlockRange caps eth_getLogs windows, 0 leaves it to narrowing.
	MaxBlockRange uint64
	// VerifyProofs checks account proofs against the block state root.
	VerifyProofs bool
}

type Client struct {
	chainID uint64
	backend Backend
	proofs  ProofBackend
	opts    Options
	logger  *log.Logger

	closers []func()
}

func NewClient(chainID uint64, backend Backend, proofs ProofBackend, opts Options) *Client {
	return &Client{
		chainID: chainID,
		backend: backend,
		proofs:  proofs,
		opts:    opts,
		logger:  log.NewLogger("chain"),
	}
}

func dialRPC(ctx context.Context, url, authToken string) (*rpc.Client, error) {
	var opts []rpc.ClientOption
	if authToken != "" {
		opts = append(opts, rpc.WithHeader("Authorization", "Bearer "+authToken))
	}
	return rpc.DialOptions(ctx, url, opts...)
}

// Dial connects to network and checks that the endpoint serves the expected chain.
// eth_getProof goes to the network's proof endpoint when it has one.
func Dial(ctx context.Context, network config.Network, c *config.Config) (*Client, error) {
	logger := log.NewLogger("chain")
	url := network.Endpoint(c.AlchemyAPIKey, c.InfuraAPIKey)
	if url == "" {
		return nil, fmt.Errorf("network %s has no rpc endpoint", network.Name)
	}
	rpcClient, err := dialRPC(ctx, url, c.RPCAuthToken)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network.Name, err)
	}
	backend := ethclient.NewClient(rpcClient)
	closers := []func(){backend.Close}

	proofClient := rpcClient
	if proofURL := network.ProofEndpoint(c.AlchemyAPIKey, c.InfuraAPIKey); proofURL != url {
		logger.Info().Str("network", network.Name).Msg("using separate endpoint for eth_getProof")
		if proofClient, err = dialRPC(ctx, proofURL, ""); err != nil {
			backend.Close()
			return nil, fmt.Errorf("dial %s proof endpoint: %w", network.Name, err)
		}
		closers = append(closers, proofClient.Close)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("eth_chainId on %s: %w", network.Name, err)
	}
	if chainID.Uint64() != network.ChainID {
		closeAll(closers)
		return nil, fmt.Errorf("network %s: endpoint serves chain %s, expected %d", network.Name, chainID, network.ChainID)
	}

	client := NewClient(network.ChainID, backend, gethclient.New(proofClient), Options{
		MaxBlockRange: c.MaxBlockRange,
		VerifyProofs:  c.VerifyProofs,
	})
	client.closers = closers
	return client, nil
}

func closeAll(closers []func()) {
	for _, c := range closers {
		c()
	}
}

func (c *Client) Close() {
	closeAll(c.closers)
	c.closers = nil
}

func (c *Client) ChainID() uint64 {
	return c.chainID
}

// BlockNumber returns the latest block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// Singleton reads storage slot 0, the singleton of a Safe proxy. Accounts without
// code or storage read as the zero address.
func (c *Client) Singleton(ctx context.Context, safe common.Address, block uint64) (common.Address, error) {
	word, err := c.backend.StorageAt(ctx, safe, common.Hash{}, new(big.Int).SetUint64(block))
	if err != nil {
		return common.Address{}, fmt.Errorf("singleton of %s: %w", safe.Hex(), err)
	}
	return common.BytesToAddress(word), nil
}
