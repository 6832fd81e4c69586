package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/celer-network/safe-storage-verifier/chain"
	"github.com/celer-network/safe-storage-verifier/config"
	"github.com/celer-network/safe-storage-verifier/deployments"
)

const versionCacheSize = 1024

var errMismatch = errors.New("storage root mismatch")

// session is the state shared by the commands that talk to one network.
type session struct {
	cfg      *config.Config
	network  config.Network
	client   *chain.Client
	versions *deployments.VersionCache
	block    uint64
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func resolveNetwork(cfg *config.Config, args []string) (config.Network, error) {
	if len(args) == 0 || args[0] == "" {
		log.Warn().Str("network", config.DefaultNetwork).Msg("no network given, defaulting")
		return cfg.ResolveNetwork(config.DefaultNetwork)
	}
	return cfg.ResolveNetwork(args[0])
}

// openSession loads the configuration, connects to the network named by args and pins
// the block: the --block flag when set, the chain head otherwise.
func openSession(ctx context.Context, cmd *cobra.Command, args []string) (*session, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	network, err := resolveNetwork(cfg, args)
	if err != nil {
		return nil, err
	}
	client, err := chain.Dial(ctx, network, cfg)
	if err != nil {
		return nil, err
	}
	versions, err := deployments.NewVersionCache(deployments.Default(), versionCacheSize)
	if err != nil {
		client.Close()
		return nil, err
	}

	block := viper.GetUint64(flagBlock)
	if !cmd.Flags().Changed(flagBlock) {
		if block, err = client.BlockNumber(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("latest block of %s: %w", network.Name, err)
		}
	}
	log.Info().Str("network", network.Name).Uint64("chainId", network.ChainID).Uint64("block", block).Msg("connected")
	return &session{cfg: cfg, network: network, client: client, versions: versions, block: block}, nil
}

func (s *session) Close() {
	s.client.Close()
}
