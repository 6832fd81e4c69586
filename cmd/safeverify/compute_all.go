package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/celer-network/safe-storage-verifier/db/badgerdb"
	"github.com/celer-network/safe-storage-verifier/results"
	"github.com/celer-network/safe-storage-verifier/types"
	"github.com/celer-network/safe-storage-verifier/verifier"
)

// loadSafes reads the account list from --safes, the default safes file of the chain,
// or the deployments stored by enumerate, in that order.
func loadSafes(cmd *cobra.Command, s *session, store *results.Store) ([]common.Address, error) {
	if cmd.Flags().Changed(flagSafes) {
		return results.ReadSafes(viper.GetString(flagSafes))
	}
	path := results.SafesPath(s.cfg.SafesDir, s.network.ChainID)
	safes, err := results.ReadSafes(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return safes, err
	}
	deployments, err := store.Safes(s.network.ChainID)
	if err != nil {
		return nil, err
	}
	if len(deployments) == 0 {
		return nil, fmt.Errorf("no safes for chain %d: run enumerate or pass --%s", s.network.ChainID, flagSafes)
	}
	safes = make([]common.Address, 0, len(deployments))
	for _, d := range deployments {
		safes = append(safes, d.Address)
	}
	return safes, nil
}

// pending drops the accounts settled by an earlier run at the same block.
func pending(store *results.Store, s *session, safes []common.Address) ([]common.Address, error) {
	summary, ok, err := store.Summary(s.network.ChainID)
	if err != nil || !ok {
		return safes, err
	}
	if summary.BlockNumber != s.block {
		log.Warn().Uint64("checkpoint", summary.BlockNumber).Uint64("block", s.block).Msg("checkpoint is for another block, starting over")
		return safes, store.Reset(s.network.ChainID)
	}
	done, err := store.Done(s.network.ChainID, s.block)
	if err != nil {
		return nil, err
	}
	todo := make([]common.Address, 0, len(safes))
	for _, safe := range safes {
		if !done.Contains(safe) {
			todo = append(todo, safe)
		}
	}
	log.Info().Int("settled", len(safes)-len(todo)).Int("pending", len(todo)).Msg("resuming")
	return todo, nil
}

func computeAllCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute-all [network]",
		Short: "verify the storage root of every Safe in a list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfgBlockSet := cmd.Flags().Changed(flagBlock)
			s, err := openSession(ctx, cmd, args)
			if err != nil {
				return err
			}
			defer s.Close()

			bdb, err := badgerdb.NewDB(s.cfg.DBDir)
			if err != nil {
				return fmt.Errorf("open %s: %w", s.cfg.DBDir, err)
			}
			defer bdb.Close()
			store := results.NewStore(bdb)

			safes, err := loadSafes(cmd, s, store)
			if err != nil {
				return err
			}
			if viper.GetBool(flagResume) {
				if summary, ok, err := store.Summary(s.network.ChainID); err == nil && ok && !cfgBlockSet {
					s.block = summary.BlockNumber
				}
				if safes, err = pending(store, s, safes); err != nil {
					return err
				}
			} else if err := store.Reset(s.network.ChainID); err != nil {
				return err
			}

			events, err := s.client.EventMap(ctx, s.cfg.FromBlock, s.block)
			if err != nil {
				return err
			}
			v := verifier.New(s.client, s.versions, verifier.Config{
				FromBlock:          s.cfg.FromBlock,
				Concurrency:        s.cfg.Concurrency,
				CheckpointInterval: s.cfg.CheckpointInterval,
				AccountTimeout:     s.cfg.AccountTimeout,
				CrossCheck:         viper.GetBool(flagCrossCheck),
			}).WithEventSource(events).WithCheckpointer(store)

			_, runErr := v.VerifyAll(ctx, safes, s.block)
			all, err := store.Load(s.network.ChainID)
			if err != nil {
				return err
			}
			path, err := results.Export(s.cfg.ResultsDir, results.NewReport(s.network.ChainID, s.block, all))
			if err != nil {
				return err
			}
			counts := all.Counts()
			log.Info().Str("report", path).
				Int("success", counts[types.StatusSuccess]).
				Int("mismatch", counts[types.StatusMismatch]).
				Int("error", counts[types.StatusError]).
				Msg("results exported")
			if runErr != nil {
				return runErr
			}
			if counts[types.StatusMismatch] > 0 {
				return fmt.Errorf("%w: %d accounts", errMismatch, counts[types.StatusMismatch])
			}
			return nil
		},
	}
	cmd.Flags().Uint64(flagBlock, 0, "block to verify at, latest when unset")
	cmd.Flags().Bool(flagCrossCheck, false, "recompute every root with a stack trie")
	cmd.Flags().String(flagSafes, "", "YAML or JSON list of Safes, <safes-dir>/<chainId>.yaml when unset")
	cmd.Flags().Bool(flagResume, false, "skip accounts settled by the last checkpoint")
	cmd.Flags().Int(flagConcurrency, 1, "accounts verified at once")
	cmd.Flags().Int(flagCheckpointInterval, 100, "accounts between checkpoints")
	cmd.Flags().Duration(flagAccountTimeout, 0, "time limit per account")
	cmd.Flags().Uint64(flagFromBlock, 0, "first block scanned for events")
	cmd.Flags().Uint64(flagMaxBlockRange, 0, "max blocks per log query, 0 for unlimited")
	cmd.Flags().String(flagDBDir, "", "checkpoint database directory")
	cmd.Flags().String(flagResultsDir, "", "report directory")
	cmd.Flags().String(flagSafesDir, "", "safes list directory")
	return cmd
}
