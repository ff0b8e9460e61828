package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "bridge.log")

	l, err := New(Config{
		Level:   "debug",
		File:    logPath,
		Console: false,
	})
	require.NoError(t, err)

	zl := l.GetZerolog()
	zl.Info().Str("component", "test").Msg("hello")
	require.NoError(t, l.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"message":"hello"`)
	assert.Contains(t, string(content), `"component":"test"`)
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "bridge.log")

	l, err := New(Config{
		Level:   "chatty",
		File:    logPath,
		Console: false,
	})
	require.NoError(t, err)

	zl := l.GetZerolog()
	zl.Debug().Msg("dropped")
	zl.Info().Msg("kept")
	require.NoError(t, l.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(content), "dropped"))
	assert.Contains(t, string(content), "kept")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
}
