package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/util/command"
)

const connectFlag = "connect"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the dapp and its management API",
		Long: `Starts the dapp: dials the wallet layer, follows the session lifecycle and
serves the action API until SIGINT or SIGTERM.`,
		RunE: runCmdFunc,
	}

	command.AddConfigFlag(cmd)
	cmd.Flags().Bool(connectFlag, false, "Start a wallet session right away")

	return cmd
}

func runCmdFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}

	connect, err := cmd.Flags().GetBool(connectFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return command.WithServer(ctx, cfg, command.TerminalDisplay, func(ctx context.Context, s *api.Server) error {
		log.Info().
			Str("address", cfg.Management.ListenAddress).
			Str("metrics", cfg.Management.MetricsPath).
			Msg("Dapp running")

		if connect {
			go func() {
				if _, err := s.App.Invoke(ctx, dapp.ActionConnect, nil); err != nil {
					log.Warn().Err(err).Msg("Wallet session not established")
				}
			}()
		}

		<-ctx.Done()
		return nil
	})
}
