package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "Get Started", cfg.Bot.StartPhrase)
	assert.Equal(t, "FACEBOOK_WELCOME", cfg.Bot.WelcomeEvent)
	assert.Equal(t, "I'm sorry, I didn't understand that", cfg.Bot.FallbackReply)
	assert.Equal(t, 1337, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, 30, cfg.NLU.TimeoutSeconds)
	assert.Equal(t, 8, cfg.Mirror.MaxInFlight)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "Get Started", cfg.Bot.StartPhrase)
	assert.NotEmpty(t, cfg.Session.DBPath)
}

func TestLoadReadsFileAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "convobridge.json")
	content := `{
		"bot": {"start_phrase": "Hi there"},
		"server": {"port": 8080, "verify_token": "secret"},
		"data_dir": "` + dir + `"
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "Hi there", cfg.Bot.StartPhrase)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.VerifyToken)
	// Untouched sections keep defaults
	assert.Equal(t, "FACEBOOK_WELCOME", cfg.Bot.WelcomeEvent)
	assert.Equal(t, filepath.Join(dir, "convobridge.db"), cfg.Session.DBPath)
}

func TestSaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "convobridge.json")

	cfg := DefaultConfig()
	cfg.Server.VerifyToken = "tok"
	cfg.Bot.Name = "demo bot"

	loader := NewLoader(configPath)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "demo bot", loaded.Bot.Name)
	assert.Equal(t, "tok", loaded.Server.VerifyToken)
}
