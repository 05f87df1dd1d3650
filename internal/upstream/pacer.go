package upstream

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum spacing between upstream call issuances, shared
// across all concurrent callers. The last-call timestamp is a single guarded
// value: Wait reserves the caller's slot under the mutex (wait-then-stamp),
// so two callers can never compute a stale wait and burst the upstream API.
type Pacer struct {
	mu       sync.Mutex
	spacing  time.Duration
	lastCall time.Time
}

// NewPacer creates a Pacer with the given minimum spacing. A non-positive
// spacing disables pacing.
func NewPacer(spacing time.Duration) *Pacer {
	return &Pacer{spacing: spacing}
}

// Wait blocks until at least the configured spacing has elapsed since the
// previously issued call, then stamps this call's issuance time. It returns
// early with the context error if ctx is done while waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.spacing <= 0 {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	target := p.lastCall.Add(p.spacing)
	if target.Before(now) {
		target = now
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	// behind it instead of racing for the same window.
	p.lastCall = target
	p.mu.Unlock()

	delay := time.Until(target)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
