package keylock

import (
	"context"
	"sync"
	"time"
)

// Locker is a best-effort keyed try-lock. It guards check-then-act
// sequences such as the guest get-or-create path. TTLs keep a crashed
// holder from wedging a key forever.
type Locker interface {
	Acquire(key string, ttl time.Duration) bool
	Release(key string)
}

// MemoryLocker is the in-process implementation used when no Valkey is
// configured. Good enough for a single-process deployment.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(key string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if exp, ok := l.held[key]; ok && exp.After(now) {
		return false
	}
	l.held[key] = now.Add(ttl)
	return true
}

func (l *MemoryLocker) Release(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}

// WithLock spins on Acquire until it wins the key or the context expires,
// then runs fn and releases. Returns ctx.Err() when the wait is cut short.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func() error) error {
	for !l.Acquire(key, ttl) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	defer l.Release(key)
	return fn()
}
