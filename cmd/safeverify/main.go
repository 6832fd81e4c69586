package main

import (
	"errors"
	"io/fs"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/celer-network/safe-storage-verifier/config"
)

const (
	flagConfig             = "config"
	flagBlock              = "block"
	flagCrossCheck         = "crosscheck"
	flagSafes              = "safes"
	flagResume             = "resume"
	flagConcurrency        = "concurrency"
	flagCheckpointInterval = "checkpoint-interval"
	flagAccountTimeout     = "account-timeout"
	flagMaxBlockRange      = "max-block-range"
	flagFromBlock          = "from-block"
	flagDBDir              = "db-dir"
	flagResultsDir         = "results-dir"
	flagSafesDir           = "safes-dir"

	defaultConfigPath = "./config/config.yaml"
)

// configKeys maps kebab case flags to their configuration keys.
var configKeys = map[string]string{
	flagConcurrency:        config.KeyConcurrency,
	flagCheckpointInterval: config.KeyCheckpointInterval,
	flagAccountTimeout:     config.KeyAccountTimeout,
	flagMaxBlockRange:      config.KeyMaxBlockRange,
	flagFromBlock:          config.KeyFromBlock,
	flagDBDir:              config.KeyDBDir,
	flagResultsDir:         config.KeyResultsDir,
	flagSafesDir:           config.KeySafesDir,
}

func bindFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	for flag, key := range configKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func readConfig(cmd *cobra.Command) error {
	viper.SetConfigFile(viper.GetString(flagConfig))
	err := viper.ReadInConfig()
	if err != nil && errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed(flagConfig) {
		log.Debug().Str("path", defaultConfigPath).Msg("no config file, using defaults")
		return nil
	}
	return err
}

func main() {
	cobra.EnableCommandSorting = false
	log.Logger = log.With().Caller().Logger()
	config.SetDefaults(viper.GetViper())

	rootCmd := &cobra.Command{
		Use:          "safeverify",
		Short:        "rebuild and check the storage root of Safe accounts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return readConfig(cmd)
		},
	}

	rootCmd.AddCommand(
		computeCommand(),
		computeAllCommand(),
		enumerateCommand(),
		networksCommand(),
	)

	rootCmd.PersistentFlags().String(flagConfig, defaultConfigPath, "config path")
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
