// Package retry implements a single bounded retry combinator, parameterized
// by max attempts and a classification of which errors are retryable,
// rather than scattering per-call retry loops across the codebase.
package retry

import (
	"context"
	"time"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// Policy controls the backoff schedule and retry classification of Do.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt; each subsequent
	// delay doubles, capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Retryable decides whether err warrants another attempt. Defaults to
	// kerrors.Retryable when nil.
	Retryable func(err error) bool
}

// DefaultPolicy makes up to 5 attempts (the first plus 4 retries) on
// RpcUnavailable errors, with exponential backoff from 200ms, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Retryable:   kerrors.Retryable,
	}
}

// Do runs op, retrying according to policy until it succeeds, the context
// is cancelled, or attempts are exhausted. The retry wrapper honors
// cancellation by checking ctx before every attempt, including the first,
// and aborting on the next scheduled sleep rather than mid-op.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = kerrors.Retryable
	}
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return lastErr
}
