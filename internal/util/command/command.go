package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github/chapool/cross-dapp/internal/api"
	"github/chapool/cross-dapp/internal/api/router"
	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/wallet/walletconnect"
)

const (
	ConfigFlag = "config"

	defaultShutdownTimeout = 10 * time.Second
)

// NewSubcommandGroup returns a command that only groups subCommands and
// prints its help when run on its own.
func NewSubcommandGroup(name string, subCommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("%s related subcommands", name),
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subCommands...)

	return cmd
}

// AddConfigFlag registers the --config flag read by LoadConfig.
func AddConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(ConfigFlag, "c", "", "Path to a yaml, toml or json config file (env only when empty)")
}

// LoadConfig loads the configuration named by --config and applies its
// logger settings.
func LoadConfig(cmd *cobra.Command) (config.Dapp, error) {
	path, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil {
		return config.Dapp{}, errors.Wrap(err, "failed to read config flag")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	SetupLogging(cfg.Logger)

	return cfg, nil
}

// SetupLogging sets the global level and switches to console output when
// pretty printing is enabled. Colors are only used on a terminal.
func SetupLogging(cfg config.LoggerServer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(cfg.Level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = "15:04:05"
			w.NoColor = !term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec
		}))
	}
}

// TerminalDisplay prints the pairing URI, and a QR code of it when stdout is
// a terminal.
func TerminalDisplay(uri string) error {
	fmt.Fprintf(os.Stdout, "Open your wallet and approve the session:\n%s\n", uri)

	if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		return nil
	}

	qr, err := walletconnect.RenderQR(uri)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, qr)

	return nil
}

// WithApp wires the app from cfg, runs its lifecycle router in the
// background and calls f. Everything is torn down once f returns.
func WithApp(ctx context.Context, cfg config.Dapp, display walletconnect.DisplayFunc, f func(ctx context.Context, app *dapp.App) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, cleanup, err := dapp.InitApp(ctx, cfg, display)
	if err != nil {
		return errors.Wrap(err, "failed to initialize app")
	}
	defer cleanup()

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- app.Run(ctx)
	}()

	err = f(ctx, app)
	cancel()

	if rErr := <-routerErr; rErr != nil && !errors.Is(rErr, context.Canceled) {
		log.Error().Err(rErr).Msg("Lifecycle router stopped with error")
		if err == nil {
			err = rErr
		}
	}

	return err
}

// WithServer is WithApp plus the management HTTP server, which is shut down
// after f returns.
func WithServer(ctx context.Context, cfg config.Dapp, display walletconnect.DisplayFunc, f func(ctx context.Context, s *api.Server) error) error {
	return WithApp(ctx, cfg, display, func(ctx context.Context, app *dapp.App) error {
		s := api.NewServer(cfg, app)
		router.Init(s)

		go func() {
			if err := s.Start(); err != nil {
				log.Info().Err(err).Msg("Server stopped")
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
			defer cancel()

			if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
				log.Error().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
			}
		}()

		return f(ctx, s)
	})
}
