package scheduler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/pkg/schema"
)

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(errors.New("boom")))
	assert.True(t, IsRetryableError(schema.NewError(schema.ErrCodeStoreUnavailable, "database is locked")))

	for _, code := range []string{
		schema.ErrCodeNotFound,
		schema.ErrCodeInvalidPrecondition,
		schema.ErrCodeStore,
		schema.ErrCodeValidation,
		schema.ErrCodeInvalidTransition,
	} {
		assert.False(t, IsRetryableError(schema.NewError(code, "test")), "expected %s to be final", code)
	}
}

func TestComputeBackoff_NilPolicy(t *testing.T) {
	assert.Equal(t, time.Duration(0), ComputeBackoff(nil, 0))
	assert.Equal(t, time.Duration(0), ComputeBackoff(&RetryPolicy{Backoff: "exponential"}, 3))
}

func TestComputeBackoff_Constant(t *testing.T) {
	policy := &RetryPolicy{Backoff: "constant", Delay: 100 * time.Millisecond}
	for attempt := 0; attempt < 3; attempt++ {
		assert.Equal(t, 100*time.Millisecond, ComputeBackoff(policy, attempt))
	}
}

func TestComputeBackoff_Linear(t *testing.T) {
	policy := &RetryPolicy{Backoff: "linear", Delay: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, ComputeBackoff(policy, 0))
	assert.Equal(t, 30*time.Millisecond, ComputeBackoff(policy, 2))
}

func TestComputeBackoff_Exponential(t *testing.T) {
	policy := &RetryPolicy{Backoff: "exponential", Delay: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, ComputeBackoff(policy, 0))
	assert.Equal(t, 20*time.Millisecond, ComputeBackoff(policy, 1))
	assert.Equal(t, 40*time.Millisecond, ComputeBackoff(policy, 2))
	assert.Equal(t, 80*time.Millisecond, ComputeBackoff(policy, 3))
}

func TestComputeBackoff_MaxDelayCap(t *testing.T) {
	policy := &RetryPolicy{Backoff: "exponential", Delay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
	assert.Equal(t, 200*time.Millisecond, ComputeBackoff(policy, 1))
	assert.Equal(t, 250*time.Millisecond, ComputeBackoff(policy, 5))
}

func TestComputeBackoff_HugeAttemptStaysCapped(t *testing.T) {
	policy := &RetryPolicy{Backoff: "exponential", Delay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
	for _, attempt := range []int{62, 63, 64, 1000, math.MaxInt32} {
		delay := ComputeBackoff(policy, attempt)
		assert.Equal(t, 5*time.Second, delay, "attempt %d", attempt)
		assert.Greater(t, delay, time.Duration(0))
	}

	policy.Backoff = "linear"
	assert.Equal(t, 5*time.Second, ComputeBackoff(policy, math.MaxInt))
}

func TestComputeBackoff_HugeAttemptWithoutCap(t *testing.T) {
	for _, backoff := range []string{"exponential", "linear"} {
		policy := &RetryPolicy{Backoff: backoff, Delay: time.Second}
		delay := ComputeBackoff(policy, math.MaxInt)
		assert.Equal(t, time.Duration(math.MaxInt64), delay, backoff)
	}
}

func TestWaitForBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitForBackoff(ctx, time.Hour), context.Canceled)
	assert.NoError(t, WaitForBackoff(ctx, 0))
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}, func() (int, error) {
		calls++
		return 0, schema.NotFound("workflow run", "r1")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RecoversFromTransient(t *testing.T) {
	calls := 0
	out, err := retry(context.Background(), RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, schema.NewError(schema.ErrCodeStoreUnavailable, "locked")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}, func() (int, error) {
		calls++
		return 0, schema.NewError(schema.ErrCodeStoreUnavailable, "locked")
	})
	require.Error(t, err)
	assert.True(t, schema.IsRetryable(err))
	assert.Equal(t, 2, calls)
}
