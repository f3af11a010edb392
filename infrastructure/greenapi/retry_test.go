package greenapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		BaseDelay:       time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          false,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	handler := NewRetryHandler(fastRetryConfig(3))

	calls := 0
	err := handler.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{StatusCode: 502, Method: "POST", Endpoint: "sendMessage"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	handler := NewRetryHandler(fastRetryConfig(3))

	calls := 0
	err := handler.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 403, Method: "POST", Endpoint: "sendMessage"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx other than 429 must not be retried")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
}

func TestRetryExhaustsAndReturnsLastError(t *testing.T) {
	handler := NewRetryHandler(fastRetryConfig(2))

	calls := 0
	err := handler.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 500, Method: "GET", Endpoint: "getSettings"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus MaxRetries")
}

func TestRetryDelaysGrowMonotonicallyAndCap(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxRetries:      5,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        250 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          false,
	})
	serverErr := &APIError{StatusCode: 500}

	assert.Equal(t, 100*time.Millisecond, handler.delayFor(0, serverErr))
	assert.Equal(t, 200*time.Millisecond, handler.delayFor(1, serverErr))
	assert.Equal(t, 250*time.Millisecond, handler.delayFor(2, serverErr), "capped at MaxDelay")
	assert.Equal(t, 250*time.Millisecond, handler.delayFor(3, serverErr))
}

func TestRetryRateLimitedDelayCapsAtOneMinute(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          false,
	})
	rateLimited := &APIError{StatusCode: 429}

	assert.Equal(t, time.Second, handler.delayFor(0, rateLimited))
	assert.Equal(t, 2*time.Second, handler.delayFor(1, rateLimited))
	// The 429 path ignores MaxDelay and caps at one minute instead.
	assert.Equal(t, rateLimitedMaxDelay, handler.delayFor(10, rateLimited))
}

func TestRetryHonorsContextDuringBackoff(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxRetries:      3,
		BaseDelay:       5 * time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := handler.Execute(ctx, func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 500}
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(&APIError{StatusCode: 429}))
	assert.True(t, IsRetryable(&APIError{StatusCode: 503}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&APIError{StatusCode: 400}))
	assert.False(t, IsRetryable(ErrCircuitOpen))
	assert.False(t, IsRetryable(context.Canceled))
}
