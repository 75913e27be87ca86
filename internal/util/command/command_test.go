package command_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/util/command"
)

func TestNewSubcommandGroup(t *testing.T) {
	a := &cobra.Command{Use: "a"}
	b := &cobra.Command{Use: "b"}

	group := command.NewSubcommandGroup("probe", a, b)
	assert.Equal(t, "probe", group.Use)
	assert.Len(t, group.Commands(), 2)
}

func TestLoadConfigAppliesLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	path := filepath.Join(t.TempDir(), "dapp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: warn\n"), 0o600))

	cmd := &cobra.Command{Use: "test"}
	command.AddConfigFlag(cmd)
	require.NoError(t, cmd.Flags().Set(command.ConfigFlag, path))

	cfg, err := command.LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, cfg.Logger.Level)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestSetupLoggingLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	command.SetupLogging(config.LoggerServer{Level: zerolog.ErrorLevel})
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}
