package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/convobridge/internal/config"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["start"])
	assert.True(t, names["configure"])
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, version, GetVersion())
	assert.Equal(t, version, rootCmd.Version)
}

func TestConfigureWritesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convobridge.json")

	oldCfgFile := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = oldCfgFile })

	flagVerifyToken = "tok-123"
	flagPageToken = "page-456"
	t.Cleanup(func() {
		flagVerifyToken = ""
		flagPageToken = ""
	})

	require.NoError(t, runConfigure(configureCmd, nil))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cfg.Server.VerifyToken)
	assert.Equal(t, "page-456", cfg.Messenger.AccessToken)
	assert.Equal(t, "Get Started", cfg.Bot.StartPhrase)
}

func TestConfigurePreservesExistingSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convobridge.json")

	oldCfgFile := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = oldCfgFile })

	flagVerifyToken = "first"
	require.NoError(t, runConfigure(configureCmd, nil))

	flagVerifyToken = ""
	flagNLUToken = "nlu-789"
	t.Cleanup(func() { flagNLUToken = "" })
	require.NoError(t, runConfigure(configureCmd, nil))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.Server.VerifyToken)
	assert.Equal(t, "nlu-789", cfg.NLU.AccessToken)
}
