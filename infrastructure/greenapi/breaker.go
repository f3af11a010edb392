package greenapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker protects one named downstream service. After maxFailures
// consecutive failures it opens and rejects calls until the cooldown
// elapses; the first call after cooldown is a half-open probe.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       BreakerClosed,
	}
}

// Call runs op through the breaker. While open it fails fast with
// ErrCircuitOpen; op's own error is passed through otherwise.
func (b *CircuitBreaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := op(ctx)
	b.record(err == nil)
	return err
}

func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.openedAt) < b.cooldown {
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		b.state = BreakerHalfOpen
		logrus.Infof("[BREAKER] %s entering half-open probe", b.name)
	}
	return nil
}

func (b *CircuitBreaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state != BreakerClosed {
			logrus.Infof("[BREAKER] %s closed after successful probe", b.name)
		}
		b.state = BreakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		logrus.Warnf("[BREAKER] %s opened after %d consecutive failures", b.name, b.failures)
	}
}

func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
