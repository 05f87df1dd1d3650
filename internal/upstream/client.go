// Package upstream wraps access to the generative text provider behind a
// narrow contract: submit a prompt, model and token budget, get back text
// plus token usage, or a classified failure. It owns the retry-with-backoff
// and global call-pacing behavior applied to every call.
package upstream

import "context"

// Request is one generation call. APIKey, when set, overrides the
// client's configured credential for this call.
type Request struct {
	Prompt          string
	Model           string
	MaxOutputTokens int
	APIKey          string
}

// Result is the successful outcome of one generation call.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client performs a single upstream call. Implementations return
// *exception.BatchError values whose transient flag classifies the failure:
// transient errors (timeouts, 5xx, rate limiting) are retried by the
// Invoker, permanent ones surface immediately.
type Client interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}
