package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.VerifyToken = "verify"
	cfg.NLU.AccessToken = "nlu-token"
	cfg.Messenger.AccessToken = "page-token"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, NewValidator().Validate(validConfig()))
}

func TestValidateRejectsMissingValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing verify token",
			mutate:  func(c *Config) { c.Server.VerifyToken = "" },
			wantErr: "verify_token",
		},
		{
			name:    "missing nlu token",
			mutate:  func(c *Config) { c.NLU.AccessToken = "  " },
			wantErr: "nlu access token",
		},
		{
			name:    "missing messenger token",
			mutate:  func(c *Config) { c.Messenger.AccessToken = "" },
			wantErr: "messenger access token",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "bad nlu url",
			mutate:  func(c *Config) { c.NLU.APIURL = "ftp://example.com" },
			wantErr: "nlu api_url",
		},
		{
			name:    "bad mirror url",
			mutate:  func(c *Config) { c.Mirror.NLUSyncURL = "://broken" },
			wantErr: "mirror nlu_sync_url",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Session.Store = "redis" },
			wantErr: "session store",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.Session.TTLHours = 0 },
			wantErr: "ttl_hours",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.NLU.TimeoutSeconds = 0 },
			wantErr: "timeout_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewValidator().Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
