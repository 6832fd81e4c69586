package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/celer-network/safe-storage-verifier/verifier"
)

func computeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute <safe> [network]",
		Short: "verify the storage root of one Safe",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%q is not an address", args[0])
			}
			safe := common.HexToAddress(args[0])

			ctx, cancel := signalContext()
			defer cancel()
			s, err := openSession(ctx, cmd, args[1:])
			if err != nil {
				return err
			}
			defer s.Close()

			v := verifier.New(s.client, s.versions, verifier.Config{
				FromBlock:  s.cfg.FromBlock,
				CrossCheck: viper.GetBool(flagCrossCheck),
			})
			result, verr := v.Verify(ctx, safe, s.block)
			out, err := yaml.Marshal(result)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			if verr != nil {
				return verr
			}
			if !result.Matched {
				log.Error().Str("safe", safe.Hex()).Str("expected", result.Expected.Hex()).Str("actual", result.Actual.Hex()).Send()
				return errMismatch
			}
			return nil
		},
	}
	cmd.Flags().Uint64(flagBlock, 0, "block to verify at, latest when unset")
	cmd.Flags().Bool(flagCrossCheck, false, "recompute every root with a stack trie")
	cmd.Flags().Uint64(flagFromBlock, 0, "first block scanned for events")
	cmd.Flags().Uint64(flagMaxBlockRange, 0, "max blocks per log query, 0 for unlimited")
	return cmd
}
