package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetupWritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "viewer.log")
	cleanup, err := Setup("error", "text", path)
	require.NoError(t, err)

	slog.Debug("tile loaded", "tile", "3/4/5")
	slog.With("component", "viewport").Info("magnification changed")
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug-1))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"tile loaded"`)
	assert.Contains(t, string(data), `"tile":"3/4/5"`)
	assert.Contains(t, string(data), `"component":"viewport"`)
}

func TestSetupConsoleOnly(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cleanup, err := Setup("warn", "json", "")
	require.NoError(t, err)
	defer cleanup()
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
}
