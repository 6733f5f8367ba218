// Package retry implements bounded exponential-backoff retry with explicit
// recoverable-error classification, plus a graceful-degradation tracker for
// resources that drop in and out of availability.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// BackoffConfig parameterizes the delay sequence between attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   int
}

// DefaultBackoffConfig mirrors common LSP/MCP client defaults: fast first
// retry, capped growth, five retries (six attempts in total).
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   5,
	}
}

// Delay returns the wait before the given attempt (0-indexed), capped at
// MaxDelay.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// toExponentialBackOff adapts BackoffConfig to cenkalti/backoff/v5's
// ExponentialBackOff. Its randomization factor is zero, so successive
// NextBackOff values are InitialDelay, InitialDelay*Multiplier, ...,
// capped at MaxDelay: the same sequence as Delay(0), Delay(1), ....
func (c BackoffConfig) toExponentialBackOff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.InitialDelay),
		backoff.WithMaxInterval(c.MaxDelay),
		backoff.WithMultiplier(c.Multiplier),
		backoff.WithRandomizationFactor(0),
	)
}

// Classifier maps an error to a recovery strategy. Callers typically pass
// kernelerr.Recoverable, but custom classifiers are supported for
// domain-specific errors that don't carry a kernelerr.Kind.
type Classifier func(err error) kernelerr.RecoveryStrategy

// DefaultClassifier classifies by kernelerr.Kind using kernelerr.Recoverable,
// with GracefulDegradation as the fallback for unrecognized errors.
func DefaultClassifier(err error) kernelerr.RecoveryStrategy {
	if kind, ok := kernelerr.KindOf(err); ok {
		return kernelerr.Recoverable(kind)
	}
	return kernelerr.StrategyGracefulDegradation
}

// Op is a retryable unit of work.
type Op func(ctx context.Context) error

// ExecuteWithRetry invokes op, retrying on recoverable failures per cfg
// until success, a non-recoverable classification, or exhausted attempts
// (MaxRetriesExceeded).
func ExecuteWithRetry(ctx context.Context, name string, cfg BackoffConfig, classify Classifier, op Op) error {
	const opName = "retry.ExecuteWithRetry"
	if classify == nil {
		classify = DefaultClassifier
	}

	b := cfg.toExponentialBackOff()
	b.Reset()

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		switch classify(lastErr) {
		case kernelerr.StrategyFail:
			return lastErr
		case kernelerr.StrategyRetry, kernelerr.StrategyFallback, kernelerr.StrategyGracefulDegradation:
			// fall through to retry below
		}

		if attempt == cfg.MaxRetries {
			return kernelerr.Wrap(opName, kernelerr.MaxRetriesExceeded, lastErr)
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			// exponential sequence exhausted on its own terms; fall back to
			// the spec's deterministic formula for this attempt.
			wait = cfg.Delay(attempt)
		}
		select {
		case <-ctx.Done():
			return kernelerr.Wrap(opName, kernelerr.Cancelled, ctx.Err())
		case <-time.After(wait):
		}
	}
	return kernelerr.Wrap(opName, kernelerr.MaxRetriesExceeded, lastErr)
}

// ExecuteWithRetryAndTimeout wraps each attempt in a per-attempt timeout; a
// timeout is treated as a recoverable (Retry) failure regardless of what
// classify would otherwise say about the operation's own error.
func ExecuteWithRetryAndTimeout(ctx context.Context, name string, cfg BackoffConfig, perAttempt time.Duration, classify Classifier, op Op) error {
	if classify == nil {
		classify = DefaultClassifier
	}
	timeoutAware := func(err error) kernelerr.RecoveryStrategy {
		if kernelerr.Is(err, kernelerr.Timeout) {
			return kernelerr.StrategyRetry
		}
		return classify(err)
	}
	wrapped := func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- op(attemptCtx) }()

		select {
		case err := <-done:
			if err != nil && ctx.Err() == nil && attemptCtx.Err() == context.DeadlineExceeded {
				return kernelerr.New("retry.ExecuteWithRetryAndTimeout", kernelerr.Timeout)
			}
			return err
		case <-attemptCtx.Done():
			return kernelerr.New("retry.ExecuteWithRetryAndTimeout", kernelerr.Timeout)
		}
	}
	return ExecuteWithRetry(ctx, name, cfg, timeoutAware, wrapped)
}

// Resource identifies a degradable dependency (an LSP server, a vector
// store backend, an LLM provider) tracked by a GracefulDegradation.
type Resource string

// GracefulDegradation tracks which resources are currently available,
// exposing an availability percentage as a coarse health signal.
type GracefulDegradation struct {
	available   map[Resource]bool
	unavailable map[Resource]bool
}

// NewGracefulDegradation returns a tracker with no known resources.
func NewGracefulDegradation() *GracefulDegradation {
	return &GracefulDegradation{
		available:   make(map[Resource]bool),
		unavailable: make(map[Resource]bool),
	}
}

// MarkAvailable records r as available, clearing any unavailable marking.
func (g *GracefulDegradation) MarkAvailable(r Resource) {
	delete(g.unavailable, r)
	g.available[r] = true
}

// MarkUnavailable records r as unavailable, clearing any available marking.
func (g *GracefulDegradation) MarkUnavailable(r Resource) {
	delete(g.available, r)
	g.unavailable[r] = true
}

// AvailabilityPercentage returns |available| / (|available|+|unavailable|) * 100,
// or 0 if no resource has been observed at all.
func (g *GracefulDegradation) AvailabilityPercentage() float64 {
	total := len(g.available) + len(g.unavailable)
	if total == 0 {
		return 0
	}
	return float64(len(g.available)) * 100 / float64(total)
}

// Available reports whether r is currently marked available.
func (g *GracefulDegradation) Available(r Resource) bool {
	return g.available[r]
}
