package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github/chapool/cross-dapp/internal/util/command"
)

const (
	verboseFlag  = "verbose"
	probeTimeout = 5 * time.Second
)

// New returns the probe command group used by container health checks.
func New() *cobra.Command {
	return command.NewSubcommandGroup("probe",
		newLiveness(),
		newReadiness(),
	)
}

func newLiveness() *cobra.Command {
	return newProbe("liveness", "Checks the dapp process answers HTTP", "/-/healthy")
}

func newReadiness() *cobra.Command {
	return newProbe("readiness", "Checks the dapp is fully wired", "/-/ready")
}

func newProbe(name, short, path string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetBool(verboseFlag)

			return probe(cmd.Context(), cmd.OutOrStdout(), baseURL(cfg.Management.ListenAddress)+path, verbose)
		},
	}

	command.AddConfigFlag(cmd)
	cmd.Flags().BoolP(verboseFlag, "v", false, "Print the response body")

	return cmd
}

// baseURL turns a listen address such as ":8080" into a dialable URL.
func baseURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "localhost" + listen
	}
	return "http://" + listen
}

func probe(ctx context.Context, out io.Writer, url string, verbose bool) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "probe %s", url)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	if verbose {
		fmt.Fprintf(out, "%d %s\n", res.StatusCode, strings.TrimSpace(string(body)))
	}

	if res.StatusCode != http.StatusOK {
		return errors.Errorf("probe %s returned %d", url, res.StatusCode)
	}

	return nil
}
