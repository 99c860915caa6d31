package scheduler

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rendis/flowlite/pkg/schema"
)

// RetryPolicy bounds how the sweeper retries a run whose completion check hit
// a transient store failure.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean one attempt.
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	// Backoff is none, constant, linear or exponential.
	Backoff string
}

// DefaultRetryPolicy retries three times with exponential backoff from 200ms.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	Delay:       200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
	Backoff:     "exponential",
}

// IsRetryableError reports whether a sweep step may be retried. Only
// STORE_UNAVAILABLE qualifies; a cancelled context never does.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return schema.IsRetryable(err)
}

// ComputeBackoff calculates the delay before retry number attempt (0-based).
// Growth stops at MaxDelay, or at the largest Duration when MaxDelay is unset.
func ComputeBackoff(policy *RetryPolicy, attempt int) time.Duration {
	if policy == nil || policy.Delay <= 0 {
		return 0
	}
	attempt = max(attempt, 0)

	limit := time.Duration(math.MaxInt64)
	if policy.MaxDelay > 0 {
		limit = policy.MaxDelay
	}

	delay := policy.Delay
	switch policy.Backoff {
	case "exponential":
		// 2^attempt * base
		for i := 0; i < attempt && delay < limit; i++ {
			if delay > limit/2 {
				delay = limit
				break
			}
			delay *= 2
		}
	case "linear":
		if time.Duration(attempt) >= limit/delay {
			delay = limit
		} else {
			delay *= time.Duration(attempt) + 1
		}
	default: // "none", "constant" or empty
	}

	return min(delay, limit)
}

// WaitForBackoff sleeps for delay or returns early if the context is cancelled.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry calls fn until it succeeds, fails permanently, or the policy runs out.
func retry[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	attempts := max(policy.MaxAttempts, 1)
	var (
		out T
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if werr := WaitForBackoff(ctx, ComputeBackoff(&policy, attempt-1)); werr != nil {
				return out, err
			}
		}
		out, err = fn()
		if !IsRetryableError(err) {
			return out, err
		}
	}
	return out, err
}
