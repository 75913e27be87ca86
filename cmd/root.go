package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github/chapool/cross-dapp/cmd/keystore"
	"github/chapool/cross-dapp/cmd/poll"
	"github/chapool/cross-dapp/cmd/probe"
	"github/chapool/cross-dapp/cmd/run"
	"github/chapool/cross-dapp/cmd/typeddata"
	"github/chapool/cross-dapp/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "app",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

A sample dapp that drives a wallet session over WalletConnect and exposes
its actions over a small JSON API. Configured through ENV or --config.`, config.ModuleName),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// attach the subcommands
	rootCmd.AddCommand(
		keystore.New(),
		poll.New(),
		probe.New(),
		run.New(),
		typeddata.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
