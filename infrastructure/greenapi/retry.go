package greenapi

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig mirrors the per-hotel retry overrides.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// rateLimitedMaxDelay caps the 429 backoff so a rate-limited gateway is
// never hammered harder than once a minute per attempt.
const rateLimitedMaxDelay = 60 * time.Second

// RetryHandler wraps an operation with bounded retries and exponential
// backoff. Non-retryable failures pass through after a single invocation;
// the final error is always the operation's own, returned unchanged so
// callers can inspect it with errors.As.
type RetryHandler struct {
	cfg RetryConfig
}

func NewRetryHandler(cfg RetryConfig) *RetryHandler {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.ExponentialBase < 1 {
		cfg.ExponentialBase = 2.0
	}
	return &RetryHandler{cfg: cfg}
}

// Execute runs op, retrying transient failures up to MaxRetries additional
// times. Waits between attempts honor ctx cancellation.
func (h *RetryHandler) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := h.delayFor(attempt-1, lastErr)
			logrus.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   lastErr.Error(),
			}).Warn("[GREEN_API] retrying after transient failure")
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// delayFor computes the wait before re-running an operation whose attempt
// number attempt (zero-based) failed with err.
func (h *RetryHandler) delayFor(attempt int, err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		d := h.cfg.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if d > rateLimitedMaxDelay {
			d = rateLimitedMaxDelay
		}
		return d
	}

	d := time.Duration(float64(h.cfg.BaseDelay) * math.Pow(h.cfg.ExponentialBase, float64(attempt)))
	if d > h.cfg.MaxDelay {
		d = h.cfg.MaxDelay
	}
	if h.cfg.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}
