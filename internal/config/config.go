package config

// Config represents the main convobridge configuration
type Config struct {
	// Bot behavior
	Bot BotConfig `json:"bot" mapstructure:"bot"`

	// Webhook HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Channel send API
	Messenger MessengerConfig `json:"messenger" mapstructure:"messenger"`

	// NLU backend
	NLU NLUConfig `json:"nlu" mapstructure:"nlu"`

	// Session store
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Best-effort traffic mirroring
	Mirror MirrorConfig `json:"mirror" mapstructure:"mirror"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// BotConfig holds dispatch behavior settings
type BotConfig struct {
	Name          string `json:"name" mapstructure:"name"`
	StartPhrase   string `json:"start_phrase" mapstructure:"start_phrase"`
	WelcomeEvent  string `json:"welcome_event" mapstructure:"welcome_event"`
	FallbackReply string `json:"fallback_reply" mapstructure:"fallback_reply"`
}

// ServerConfig holds webhook server configuration
type ServerConfig struct {
	Host        string `json:"host" mapstructure:"host"`
	Port        int    `json:"port" mapstructure:"port"`
	VerifyToken string `json:"verify_token" mapstructure:"verify_token"`
	AppSecret   string `json:"app_secret" mapstructure:"app_secret"` // enables signature checks when set
}

// MessengerConfig holds channel send API configuration
type MessengerConfig struct {
	APIURL      string `json:"api_url" mapstructure:"api_url"`
	AccessToken string `json:"access_token" mapstructure:"access_token"`
}

// NLUConfig holds NLU backend configuration
type NLUConfig struct {
	APIURL         string `json:"api_url" mapstructure:"api_url"`
	AccessToken    string `json:"access_token" mapstructure:"access_token"`
	Language       string `json:"language" mapstructure:"language"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	Store         string `json:"store" mapstructure:"store"` // sqlite, memory
	DBPath        string `json:"db_path" mapstructure:"db_path"`
	TTLHours      int    `json:"ttl_hours" mapstructure:"ttl_hours"`
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"` // cron expression
}

// MirrorConfig holds auxiliary mirror endpoint configuration
type MirrorConfig struct {
	NLUSyncURL     string `json:"nlu_sync_url" mapstructure:"nlu_sync_url"`
	WebhookSyncURL string `json:"webhook_sync_url" mapstructure:"webhook_sync_url"`
	MaxInFlight    int    `json:"max_in_flight" mapstructure:"max_in_flight"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Name:          "convobridge",
			StartPhrase:   "Get Started",
			WelcomeEvent:  "FACEBOOK_WELCOME",
			FallbackReply: "I'm sorry, I didn't understand that",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 1337,
		},
		Messenger: MessengerConfig{
			APIURL: "https://graph.facebook.com/v2.6",
		},
		NLU: NLUConfig{
			APIURL:         "https://api.api.ai/v1",
			Language:       "en",
			TimeoutSeconds: 30,
		},
		Session: SessionConfig{
			Store:         "sqlite",
			TTLHours:      24,
			SweepSchedule: "@hourly",
		},
		Mirror: MirrorConfig{
			MaxInFlight: 8,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}
