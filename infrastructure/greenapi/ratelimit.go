package greenapi

import (
	"context"
	"sync"
	"time"
)

// burstGrace is the fixed pause applied when the burst counter saturates
// before the counter is reset.
const burstGrace = 100 * time.Millisecond

// RateLimiter gates outbound gateway calls under three simultaneous
// ceilings: requests/second, requests/minute and a burst counter reset
// every second. One limiter per hotel instance; limiters never share state
// across tenants.
//
// The whole admission body runs under a single mutex, including the waits,
// so concurrent callers are strictly serialized and the shared windows are
// never raced. That matches the admission-order guarantee: whoever enters
// first is admitted first, nothing stronger.
type RateLimiter struct {
	mu sync.Mutex

	perSecond int
	perMinute int
	burst     int

	secondWindow []time.Time
	minuteWindow []time.Time

	burstCount     int
	lastBurstReset time.Time

	// OnWait, when set, receives the total time a caller spent blocked.
	OnWait func(d time.Duration)
}

func NewRateLimiter(requestsPerMinute, requestsPerSecond, burstLimit int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &RateLimiter{
		perSecond:      requestsPerSecond,
		perMinute:      requestsPerMinute,
		burst:          burstLimit,
		lastBurstReset: time.Now(),
	}
}

// Acquire blocks until one more request may be issued, or until ctx is
// cancelled. No rolling 1-second window ever admits more than perSecond
// calls, and no rolling 60-second window more than perMinute.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()

	for {
		now := time.Now()
		l.prune(now)

		if l.burst > 0 && now.Sub(l.lastBurstReset) >= time.Second {
			l.burstCount = 0
			l.lastBurstReset = now
		}

		var wait time.Duration
		switch {
		case l.burst > 0 && l.burstCount >= l.burst:
			wait = burstGrace
		case len(l.secondWindow) >= l.perSecond:
			wait = l.secondWindow[0].Add(time.Second).Sub(now)
		case len(l.minuteWindow) >= l.perMinute:
			wait = l.minuteWindow[0].Add(time.Minute).Sub(now)
		}

		if wait <= 0 {
			break
		}
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
		if l.burst > 0 && l.burstCount >= l.burst {
			// Grace period served; reset the burst counter.
			l.burstCount = 0
			l.lastBurstReset = time.Now()
		}
	}

	now := time.Now()
	l.secondWindow = append(l.secondWindow, now)
	l.minuteWindow = append(l.minuteWindow, now)
	l.burstCount++

	if waited := now.Sub(start); waited > time.Millisecond && l.OnWait != nil {
		l.OnWait(waited)
	}
	return nil
}

func (l *RateLimiter) prune(now time.Time) {
	secCutoff := now.Add(-time.Second)
	for len(l.secondWindow) > 0 && !l.secondWindow[0].After(secCutoff) {
		l.secondWindow = l.secondWindow[1:]
	}
	minCutoff := now.Add(-time.Minute)
	for len(l.minuteWindow) > 0 && !l.minuteWindow[0].After(minCutoff) {
		l.minuteWindow = l.minuteWindow[1:]
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
