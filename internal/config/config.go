// Package config provides structures and utilities for managing the
// castforge application configuration.
package config

// Defaults for the generation engine. All are overridable via YAML or
// environment variables.
const (
	DefaultConcurrency    = 5
	DefaultMaxRetries     = 2
	DefaultBaseRetryDelay = 1000 // milliseconds
	DefaultCallSpacing    = 500  // milliseconds
)

// GenerationConfig holds the orchestration knobs for a batch generation run.
type GenerationConfig struct {
	// Concurrency is the width of the bounded worker pool driving work items.
	Concurrency int `yaml:"concurrency"`
	// MaxRetries is the number of additional upstream attempts after the first.
	MaxRetries int `yaml:"max_retries"`
	// BaseRetryDelayMs is the initial backoff interval in milliseconds;
	// attempt n waits BaseRetryDelayMs * 2^n.
	BaseRetryDelayMs int `yaml:"base_retry_delay_ms"`
	// CallSpacingMs is the minimum spacing between upstream call issuances,
	// enforced globally across all concurrent callers.
	CallSpacingMs int `yaml:"call_spacing_ms"`
	// PausePollMs is the interval at which a paused work item re-checks the
	// job state.
	PausePollMs int `yaml:"pause_poll_ms"`
	// SingleMaxTokens is the output-token ceiling for a single transcript call.
	SingleMaxTokens int `yaml:"single_max_tokens"`
	// SeriesMaxTokens is the output-token ceiling for a 4-episode series call.
	SeriesMaxTokens int `yaml:"series_max_tokens"`
	// MaxArtifacts caps the total artifact count accepted per job.
	MaxArtifacts int `yaml:"max_artifacts"`
}

// UpstreamConfig holds the connection settings for the generative text API.
type UpstreamConfig struct {
	// BaseURL is the API host, e.g. https://generativelanguage.googleapis.com.
	BaseURL string `yaml:"base_url"`
	// Model is the default model identifier when a job does not name one.
	Model string `yaml:"model"`
	// APIKey is the credential; usually supplied per-request instead.
	APIKey string `yaml:"api_key"`
	// TimeoutSeconds is the HTTP client timeout. <=0 selects 120s.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DatabaseConfig holds the SQLite settings backing the job state store.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty selects in-memory persistence,
	// which does not survive restarts.
	Path string `yaml:"path"`
}

// ServerConfig holds the HTTP front settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	// Storage is the artifact storage settings, decoded per adapter type.
	Storage map[string]interface{} `yaml:"storage"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			Concurrency:      DefaultConcurrency,
			MaxRetries:       DefaultMaxRetries,
			BaseRetryDelayMs: DefaultBaseRetryDelay,
			CallSpacingMs:    DefaultCallSpacing,
			PausePollMs:      500,
			SingleMaxTokens:  4096,
			SeriesMaxTokens:  16384,
			MaxArtifacts:     100,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://generativelanguage.googleapis.com",
			Model:          "gemini-2.5-flash",
			TimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Storage: map[string]interface{}{},
	}
}
