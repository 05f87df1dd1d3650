package upstream

import (
	"context"
	"errors"
	"time"

	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

// RetryPolicy decides whether an error is retryable and what backoff to
// apply between attempts.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// BackoffInterval returns the wait before retrying after the given
	// failed attempt (0-based).
	BackoffInterval(attempt int) time.Duration
	// MaxRetries returns the number of additional attempts after the first.
	MaxRetries() int
}

// exponentialPolicy retries transient errors with
// baseDelay * 2^attempt backoff.
type exponentialPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

// NewExponentialPolicy creates the default retry policy.
func NewExponentialPolicy(maxRetries int, baseDelay time.Duration) RetryPolicy {
	return &exponentialPolicy{maxRetries: maxRetries, baseDelay: baseDelay}
}

func (p *exponentialPolicy) ShouldRetry(err error) bool {
	return exception.IsTransient(err)
}

func (p *exponentialPolicy) BackoffInterval(attempt int) time.Duration {
	return p.baseDelay * (1 << attempt)
}

func (p *exponentialPolicy) MaxRetries() int {
	return p.maxRetries
}

var _ RetryPolicy = (*exponentialPolicy)(nil)

// Observer receives call-level observability signals. The metrics package
// provides the Prometheus implementation.
type Observer interface {
	// RecordRateLimited counts an upstream rate-limit signal.
	RecordRateLimited()
	// RecordRetry counts one retry attempt.
	RecordRetry()
	// ObserveCall records the duration and outcome of a finished call.
	ObserveCall(model string, d time.Duration, success bool)
}

// NopObserver discards all signals.
type NopObserver struct{}

func (NopObserver) RecordRateLimited()                      {}
func (NopObserver) RecordRetry()                            {}
func (NopObserver) ObserveCall(string, time.Duration, bool) {}

var _ Observer = NopObserver{}

// Invoker drives a Client through pacing and the retry policy. It is the
// only entry point the orchestrator uses for upstream calls.
type Invoker struct {
	client   Client
	policy   RetryPolicy
	pacer    *Pacer
	observer Observer
}

// NewInvoker composes a client with pacing and retries.
func NewInvoker(client Client, policy RetryPolicy, pacer *Pacer, observer Observer) *Invoker {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Invoker{client: client, policy: policy, pacer: pacer, observer: observer}
}

// Invoke performs one logical generation call: wait for the global pacing
// slot, call upstream, and on transient failure retry up to MaxRetries
// additional times with exponential backoff. The last error is surfaced
// once attempts are exhausted; the caller decides whether the unit fails
// or the whole job aborts.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (Result, error) {
	var lastErr error
	attempts := inv.policy.MaxRetries() + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			inv.observer.RecordRetry()
			delay := inv.policy.BackoffInterval(attempt - 1)
			logger.Debugf("Upstream attempt %d/%d for model '%s' backing off %v.", attempt+1, attempts, req.Model, delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Result{}, ctx.Err()
			case <-timer.C:
			}
		}

		if err := inv.pacer.Wait(ctx); err != nil {
			return Result{}, err
		}

		start := time.Now()
		res, err := inv.client.Invoke(ctx, req)
		inv.observer.ObserveCall(req.Model, time.Since(start), err == nil)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if errors.Is(err, exception.ErrRateLimited) {
			inv.observer.RecordRateLimited()
			logger.Warnf("Upstream rate limited (model '%s', attempt %d/%d).", req.Model, attempt+1, attempts)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		if !inv.policy.ShouldRetry(err) {
			return Result{}, err
		}
	}
	return Result{}, lastErr
}
