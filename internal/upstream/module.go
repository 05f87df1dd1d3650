// Package upstream talks to the generative API: a Gemini HTTP client,
// global call pacing, and retry with exponential backoff.
package upstream

import (
	"os"
	"time"

	"go.uber.org/fx"

	"castforge/internal/config"
)

// NewClientFromConfig builds the Gemini client, resolving the API key from
// config or the GEMINI_API_KEY environment variable.
func NewClientFromConfig(cfg *config.Config) Client {
	apiKey := cfg.Upstream.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return NewGeminiClient(cfg.Upstream, apiKey)
}

// NewPacerFromConfig builds the shared pacer from the configured spacing.
func NewPacerFromConfig(cfg *config.Config) *Pacer {
	return NewPacer(time.Duration(cfg.Generation.CallSpacingMs) * time.Millisecond)
}

// NewPolicyFromConfig builds the default exponential retry policy.
func NewPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return NewExponentialPolicy(
		cfg.Generation.MaxRetries,
		time.Duration(cfg.Generation.BaseRetryDelayMs)*time.Millisecond,
	)
}

// Module is an Fx module that wires the upstream client stack.
var Module = fx.Options(
	fx.Provide(NewClientFromConfig),
	fx.Provide(NewPacerFromConfig),
	fx.Provide(NewPolicyFromConfig),
	fx.Provide(NewInvoker),
)
