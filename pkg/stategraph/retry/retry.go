// Package retry wraps unreliable external calls with bounded attempts
// and backoff.
//
// Wrapped operations MUST be idempotent or side-effect-free on failure:
// no side effect of a failed attempt is assumed undone before the next
// one. That requirement is part of the collaborator contract and is the
// author's responsibility, not something this package can enforce.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/stategraph/stategraph/pkg/stategraph/config"
)

// Policy configures retry behavior for a wrapped call.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// BackoffFactor is the multiplier applied after each attempt.
	// 1.0 gives a fixed delay; values below 1 are treated as 1.0.
	BackoffFactor float64

	// MaxBackoff caps the backoff duration. 0 = no cap.
	MaxBackoff time.Duration

	// Jitter is the random jitter factor (0.0-1.0) applied to each sleep.
	Jitter float64

	// RetryIf optionally limits which errors are retried.
	// nil retries every error.
	RetryIf func(error) bool
}

// Default is the standard policy: 3 attempts, exponential backoff from
// 1s doubling up to 30s, with 10% jitter.
var Default = Policy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	BackoffFactor:  2.0,
	MaxBackoff:     30 * time.Second,
	Jitter:         0.1,
}

// Fixed returns a fixed-delay policy: attempts tries with the same
// delay between each.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: delay,
		BackoffFactor:  1.0,
	}
}

// Exponential returns an exponential-backoff policy growing by factor
// each attempt, capped at max.
func Exponential(attempts int, initial time.Duration, factor float64, max time.Duration) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: initial,
		BackoffFactor:  factor,
		MaxBackoff:     max,
	}
}

// PolicyFromConfig builds a Policy from the recognized config keys
// retry_attempts, retry_backoff, retry_backoff_factor, retry_max_backoff.
// Missing keys fall back to Default.
func PolicyFromConfig(cfg config.Config) Policy {
	return Policy{
		MaxAttempts:    cfg.Int("retry_attempts", Default.MaxAttempts),
		InitialBackoff: cfg.Duration("retry_backoff", Default.InitialBackoff),
		BackoffFactor:  cfg.Float("retry_backoff_factor", Default.BackoffFactor),
		MaxBackoff:     cfg.Duration("retry_max_backoff", Default.MaxBackoff),
		Jitter:         cfg.Float("retry_jitter", Default.Jitter),
	}
}

// ExhaustedError reports that a wrapped call never succeeded within its
// attempt budget. It wraps the last error and records how many attempts
// were made.
type ExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int
	// Err is the error from the final attempt.
	Err error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the final attempt's error for errors.Is/As support.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do invokes fn under the policy. On error it sleeps per the backoff
// schedule and retries, up to the attempt budget. Cancellation is
// observed both before each attempt and during backoff sleeps.
//
// On success, returns fn's result. On final failure, returns a
// *ExhaustedError wrapping the last error. A non-retryable error (per
// Policy.RetryIf) is returned as-is without further attempts.
func Do[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	factor := policy.BackoffFactor
	if factor < 1 {
		factor = 1.0
	}

	backoff := policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if policy.RetryIf != nil && !policy.RetryIf(err) {
			return zero, err
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(withJitter(backoff, policy.Jitter)):
			}

			backoff = time.Duration(float64(backoff) * factor)
			if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
				backoff = policy.MaxBackoff
			}
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Wrap turns an argumentless operation into one guarded by the policy.
// Useful for building retry-wrapped collaborators once and calling them
// from many nodes.
func Wrap[T any](policy Policy, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Do(ctx, policy, fn)
	}
}

// withJitter applies the jitter factor: base +/- (base * jitter * random).
func withJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || base <= 0 {
		return base
	}
	amount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + amount)
}
