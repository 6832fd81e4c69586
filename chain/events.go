package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/celer-network/safe-storage-verifier/aggregator"
	"github.com/celer-network/safe-storage-verifier/deployments"
	"github.com/celer-network/safe-storage-verifier/serialization"
	"github.com/celer-network/safe-storage-verifier/types"
)

// ListedVersions are the versions whose proxy factories are scanned by ListSafes.
var ListedVersions = []string{"1.3.0", "1.4.1"}

// EventMap holds the SignMsg and ApproveHash logs of a chain grouped by emitter.
type EventMap map[common.Address]*types.Events

// Events returns the logs of safe, or nil when it emitted none.
func (m EventMap) Events(safe common.Address) *types.Events {
	return m[safe]
}

func (m EventMap) entry(addr common.Address) *types.Events {
	events, ok := m[addr]
	if !ok {
		events = &types.Events{}
		m[addr] = events
	}
	return events
}

func (c *Client) fetcher(progress bool) *aggregator.RangeFetcher[gethtypes.Log] {
	var report aggregator.ProgressFunc
	if progress {
		report = aggregator.NewReporter(c.logger)
	}
	return aggregator.NewRangeFetcher[gethtypes.Log](c.opts.MaxBlockRange, report)
}

func (c *Client) filterLogs(query ethereum.FilterQuery) aggregator.FetchFunc[gethtypes.Log] {
	return func(ctx context.Context, from, to uint64) ([]gethtypes.Log, error) {
		q := query
		q.FromBlock = new(big.Int).SetUint64(from)
		q.ToBlock = new(big.Int).SetUint64(to)
		return c.backend.FilterLogs(ctx, q)
	}
}

// Events returns the SignMsg and ApproveHash logs safe emitted in [from, to].
func (c *Client) Events(ctx context.Context, safe common.Address, from, to uint64) (*types.Events, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{safe},
		Topics:    [][]common.Hash{{serialization.SignMsgTopic, serialization.ApproveHashTopic}},
	}
	logs, err := c.fetcher(c.logger.IsDebugEnabled()).Fetch(ctx, from, to, c.filterLogs(query))
	if err != nil {
		return nil, fmt.Errorf("events of %s: %w", safe.Hex(), err)
	}
	return serialization.SplitEvents(logs), nil
}

// EventMap fetches every SignMsg and ApproveHash log of the chain in [from, to].
func (c *Client) EventMap(ctx context.Context, from, to uint64) (EventMap, error) {
	result := make(EventMap)

	c.logger.Info().Uint64("from", from).Uint64("to", to).Msg("fetching all SignMsg events")
	logs, err := c.fetcher(true).Fetch(ctx, from, to, c.filterLogs(ethereum.FilterQuery{
		Topics: [][]common.Hash{{serialization.SignMsgTopic}},
	}))
	if err != nil {
		return nil, fmt.Errorf("SignMsg events: %w", err)
	}
	for _, l := range logs {
		events := result.entry(l.Address)
		events.SignMsg = append(events.SignMsg, l)
	}

	c.logger.Info().Uint64("from", from).Uint64("to", to).Msg("fetching all ApproveHash events")
	logs, err = c.fetcher(true).Fetch(ctx, from, to, c.filterLogs(ethereum.FilterQuery{
		Topics: [][]common.Hash{{serialization.ApproveHashTopic}},
	}))
	if err != nil {
		return nil, fmt.Errorf("ApproveHash events: %w", err)
	}
	for _, l := range logs {
		events := result.entry(l.Address)
		events.ApproveHash = append(events.ApproveHash, l)
	}

	c.logger.Info().Int("emitters", len(result)).Msg("event map ready")
	return result, nil
}

// ListSafes returns the proxies created by the known proxy factories in [from, to],
// ordered by block.
func (c *Client) ListSafes(ctx context.Context, registry *deployments.Registry, from, to uint64) ([]types.SafeDeployment, error) {
	var safes []types.SafeDeployment
	for _, version := range ListedVersions {
		for _, factory := range registry.ProxyFactories(c.chainID, version) {
			c.logger.Info().Str("factory", factory.Hex()).Str("version", version).Msg("finding Safes")
			found, err := c.listFromFactory(ctx, factory, from, to)
			if err != nil {
				return nil, err
			}
			c.logger.Info().Str("factory", factory.Hex()).Int("count", len(found)).Msg("found Safes")
			safes = append(safes, found...)
		}
	}
	sort.SliceStable(safes, func(i, j int) bool {
		return safes[i].BlockNumber < safes[j].BlockNumber
	})
	return safes, nil
}

func (c *Client) listFromFactory(ctx context.Context, factory common.Address, from, to uint64) ([]types.SafeDeployment, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{factory},
		Topics:    [][]common.Hash{{serialization.ProxyCreationTopic}},
	}
	logs, err := c.fetcher(true).Fetch(ctx, from, to, c.filterLogs(query))
	if err != nil {
		return nil, fmt.Errorf("ProxyCreation events of %s: %w", factory.Hex(), err)
	}
	safes := make([]types.SafeDeployment, 0, len(logs))
	for i := range logs {
		deployment, err := serialization.DecodeProxyCreation(&logs[i])
		if err != nil {
			return nil, fmt.Errorf("ProxyCreation in tx %s: %w", logs[i].TxHash.Hex(), err)
		}
		safes = append(safes, *deployment)
	}
	return safes, nil
}
