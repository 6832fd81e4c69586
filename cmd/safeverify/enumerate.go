package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/celer-network/safe-storage-verifier/config"
	"github.com/celer-network/safe-storage-verifier/db/badgerdb"
	"github.com/celer-network/safe-storage-verifier/deployments"
	"github.com/celer-network/safe-storage-verifier/results"
)

func enumerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enumerate [network]",
		Short: "list the Safes created by the v1.3.0 and v1.4.1 proxy factories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			s, err := openSession(ctx, cmd, args)
			if err != nil {
				return err
			}
			defer s.Close()

			safes, err := s.client.ListSafes(ctx, deployments.Default(), s.cfg.FromBlock, s.block)
			if err != nil {
				return err
			}
			path, err := results.WriteSafes(results.SafesPath(s.cfg.SafesDir, s.network.ChainID), safes)
			if err != nil {
				return err
			}

			bdb, err := badgerdb.NewDB(s.cfg.DBDir)
			if err != nil {
				return fmt.Errorf("open %s: %w", s.cfg.DBDir, err)
			}
			defer bdb.Close()
			if err := results.NewStore(bdb).SaveSafes(s.network.ChainID, safes); err != nil {
				return err
			}
			log.Info().Int("safes", len(safes)).Str("file", path).Msg("enumerated")
			return nil
		},
	}
	cmd.Flags().Uint64(flagBlock, 0, "last block scanned, latest when unset")
	cmd.Flags().Uint64(flagFromBlock, 0, "first block scanned")
	cmd.Flags().Uint64(flagMaxBlockRange, 0, "max blocks per log query, 0 for unlimited")
	cmd.Flags().String(flagDBDir, "", "checkpoint database directory")
	cmd.Flags().String(flagSafesDir, "", "safes list directory")
	return cmd
}

func networksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "list the known networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCHAIN ID\tVERSIONS")
			registry := deployments.Default()
			for _, name := range cfg.NetworkNames() {
				n := cfg.Networks[name]
				fmt.Fprintf(w, "%s\t%d\t%v\n", name, n.ChainID, registry.Versions(n.ChainID))
			}
			return w.Flush()
		},
	}
}
