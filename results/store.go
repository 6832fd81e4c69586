// Package results persists batch verification results. Checkpoints go to a db.DB
// keyed by chain and account; finished runs are exported as YAML files.
package results

import (
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/celer-network/safe-storage-verifier/db"
	"github.com/celer-network/safe-storage-verifier/log"
	"github.com/celer-network/safe-storage-verifier/types"
)

var ErrCorruptEntry = errors.New("corrupt result entry")

// Summary is the checkpoint record of one chain.
type Summary struct {
	ChainID     uint64         `yaml:"chainId"`
	BlockNumber uint64         `yaml:"blockNumber"`
	Total       int            `yaml:"total"`
	Counts      map[string]int `yaml:"counts"`
	UpdatedAt   int64          `yaml:"updatedAt"`
}

type Store struct {
	db     db.DB
	logger *log.Logger
	now    func() time.Time
}

func NewStore(d db.DB) *Store {
	return &Store{
		db:     d,
		logger: log.NewLogger("results"),
		now:    time.Now,
	}
}

func (s *Store) WithLogger(logger *log.Logger) *Store {
	s.logger = logger
	return s
}

func resultKey(chainID uint64, safe common.Address) []byte {
	return db.ChainKey(chainID, safe.Bytes())
}

// Checkpoint writes every result of batch and the chain summary in one bulk. Results
// of an account replace the ones stored before.
func (s *Store) Checkpoint(chainID uint64, block uint64, batch *types.BatchResult) error {
	bulk := s.db.NewBulk()
	summary := &Summary{
		ChainID:     chainID,
		BlockNumber: block,
		Counts:      make(map[string]int),
		UpdatedAt:   s.now().Unix(),
	}
	for _, status := range types.AllStatuses() {
		for _, r := range batch.List(status) {
			value, err := yaml.Marshal(r)
			if err != nil {
				bulk.DiscardLast()
				return fmt.Errorf("encode result of %s: %w", r.Address.Hex(), err)
			}
			if err := bulk.Set(db.NamespaceResult, resultKey(chainID, r.Address), value); err != nil {
				bulk.DiscardLast()
				return err
			}
			summary.Counts[status.String()]++
			summary.Total++
		}
	}
	value, err := yaml.Marshal(summary)
	if err != nil {
		bulk.DiscardLast()
		return err
	}
	if err := bulk.Set(db.NamespaceCheckpoint, db.ChainKey(chainID), value); err != nil {
		bulk.DiscardLast()
		return err
	}
	if err := bulk.Flush(); err != nil {
		return fmt.Errorf("flush checkpoint of chain %d: %w", chainID, err)
	}
	s.logger.Debug().Uint64("chainId", chainID).Uint64("block", block).Int("total", summary.Total).Msg("checkpoint written")
	return nil
}

// Summary returns the last checkpoint summary of chainID.
func (s *Store) Summary(chainID uint64) (*Summary, bool, error) {
	value, ok, err := s.db.Get(db.NamespaceCheckpoint, db.ChainKey(chainID))
	if err != nil || !ok {
		return nil, ok, err
	}
	summary := &Summary{}
	if err := yaml.Unmarshal(value, summary); err != nil {
		return nil, false, fmt.Errorf("%w: summary of chain %d: %v", ErrCorruptEntry, chainID, err)
	}
	return summary, true, nil
}

// Load returns every stored result of chainID, ordered by address.
func (s *Store) Load(chainID uint64) (*types.BatchResult, error) {
	batch := &types.BatchResult{}
	it := s.db.Iterator(db.NamespaceResult, db.ChainKey(chainID))
	defer it.Close()
	for ; it.Valid(); it.Next() {
		value, err := it.Value()
		if err != nil {
			return nil, err
		}
		r := &types.VerificationResult{}
		if err := yaml.Unmarshal(value, r); err != nil {
			key, _ := it.Key()
			return nil, fmt.Errorf("%w: key %x: %v", ErrCorruptEntry, key, err)
		}
		batch.Add(r)
	}
	return batch, nil
}

// Done returns the accounts of chainID already settled at block. Accounts whose last
// result is an error are not settled and get verified again on resume.
func (s *Store) Done(chainID uint64, block uint64) (mapset.Set[common.Address], error) {
	batch, err := s.Load(chainID)
	if err != nil {
		return nil, err
	}
	done := mapset.NewThreadUnsafeSet[common.Address]()
	for _, status := range types.AllStatuses() {
		if status == types.StatusError {
			continue
		}
		for _, r := range batch.List(status) {
			if r.BlockNumber == block {
				done.Add(r.Address)
			}
		}
	}
	return done, nil
}

// Reset removes the stored results and summary of chainID.
func (s *Store) Reset(chainID uint64) error {
	var keys [][]byte
	it := s.db.Iterator(db.NamespaceResult, db.ChainKey(chainID))
	for ; it.Valid(); it.Next() {
		key, err := it.Key()
		if err != nil {
			it.Close()
			return err
		}
		keys = append(keys, key)
	}
	it.Close()

	bulk := s.db.NewBulk()
	for _, key := range keys {
		if err := bulk.Delete(db.NamespaceResult, key); err != nil {
			bulk.DiscardLast()
			return err
		}
	}
	if err := bulk.Delete(db.NamespaceCheckpoint, db.ChainKey(chainID)); err != nil {
		bulk.DiscardLast()
		return err
	}
	return bulk.Flush()
}

// SaveSafes stores the deployments found by enumeration for chainID.
func (s *Store) SaveSafes(chainID uint64, safes []types.SafeDeployment) error {
	bulk := s.db.NewBulk()
	for i := range safes {
		value, err := yaml.Marshal(&safes[i])
		if err != nil {
			bulk.DiscardLast()
			return err
		}
		if err := bulk.Set(db.NamespaceSafes, resultKey(chainID, safes[i].Address), value); err != nil {
			bulk.DiscardLast()
			return err
		}
	}
	return bulk.Flush()
}

// Safes returns the stored deployments of chainID, ordered by address.
func (s *Store) Safes(chainID uint64) ([]types.SafeDeployment, error) {
	var safes []types.SafeDeployment
	it := s.db.Iterator(db.NamespaceSafes, db.ChainKey(chainID))
	defer it.Close()
	for ; it.Valid(); it.Next() {
		value, err := it.Value()
		if err != nil {
			return nil, err
		}
		var deployment types.SafeDeployment
		if err := yaml.Unmarshal(value, &deployment); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
		safes = append(safes, deployment)
	}
	return safes, nil
}
