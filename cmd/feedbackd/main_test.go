package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logLevel("warn"))
	assert.Equal(t, slog.LevelError, logLevel("error"))
	assert.Equal(t, slog.LevelInfo, logLevel(""))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "once", "stats", "migrate", "outcome", "reset", "watch"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	cmd, _, err := rootCmd.Find([]string{"outcome", "estimate"})
	require.NoError(t, err)
	assert.Equal(t, "estimate", cmd.Name())
}

func TestResetNeedsConfirmation(t *testing.T) {
	rootCmd.SetArgs([]string{"reset"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestOutcomeRejectsBadID(t *testing.T) {
	rootCmd.SetArgs([]string{"outcome", "claim", "not-a-uuid"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid claim id")
}

func TestOnceHasDryRunFlag(t *testing.T) {
	flag := onceCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestWatchNeedsRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	rootCmd.SetArgs([]string{"watch"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}
