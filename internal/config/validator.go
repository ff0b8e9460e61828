package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a loaded config for values the bridge cannot start without.
func (v *Validator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	if strings.TrimSpace(cfg.Server.VerifyToken) == "" {
		return fmt.Errorf("server verify_token cannot be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", cfg.Server.Port)
	}

	if err := v.ValidateAccessToken(cfg.NLU.AccessToken, "nlu"); err != nil {
		return err
	}
	if err := v.ValidateAccessToken(cfg.Messenger.AccessToken, "messenger"); err != nil {
		return err
	}

	if err := v.ValidateURL(cfg.NLU.APIURL, "nlu api_url"); err != nil {
		return err
	}
	if err := v.ValidateURL(cfg.Messenger.APIURL, "messenger api_url"); err != nil {
		return err
	}
	if cfg.Mirror.NLUSyncURL != "" {
		if err := v.ValidateURL(cfg.Mirror.NLUSyncURL, "mirror nlu_sync_url"); err != nil {
			return err
		}
	}
	if cfg.Mirror.WebhookSyncURL != "" {
		if err := v.ValidateURL(cfg.Mirror.WebhookSyncURL, "mirror webhook_sync_url"); err != nil {
			return err
		}
	}

	switch cfg.Session.Store {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown session store %q (expected sqlite or memory)", cfg.Session.Store)
	}
	if cfg.Session.TTLHours <= 0 {
		return fmt.Errorf("session ttl_hours must be positive")
	}

	if cfg.NLU.TimeoutSeconds <= 0 {
		return fmt.Errorf("nlu timeout_seconds must be positive")
	}

	return nil
}

// ValidateAccessToken validates an access token is present
func (v *Validator) ValidateAccessToken(token string, service string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%s access token cannot be empty", service)
	}
	return nil
}

// ValidateURL validates an endpoint URL
func (v *Validator) ValidateURL(raw string, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: host is required", field)
	}
	return nil
}
