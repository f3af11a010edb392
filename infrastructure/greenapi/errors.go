package greenapi

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrCircuitOpen is returned without touching the network while the
// breaker cools down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// APIError is a non-2xx response from the gateway after any retries.
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("green api %s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// Retryable reports whether another attempt can reasonably succeed:
// 5xx and 429 yes, any other 4xx no.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable classifies an error for the retry handler. Network errors and
// timeouts are transient; client errors other than 429 are not. A tripped
// breaker is never retried here, the caller backs off instead.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
