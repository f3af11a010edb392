package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerAcquireRelease(t *testing.T) {
	l := NewMemoryLocker()

	require.True(t, l.Acquire("k", time.Second))
	assert.False(t, l.Acquire("k", time.Second), "held key cannot be re-acquired")
	assert.True(t, l.Acquire("other", time.Second), "keys are independent")

	l.Release("k")
	assert.True(t, l.Acquire("k", time.Second))
}

func TestMemoryLockerTTLExpires(t *testing.T) {
	l := NewMemoryLocker()

	require.True(t, l.Acquire("k", 20*time.Millisecond))
	assert.False(t, l.Acquire("k", time.Second))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Acquire("k", time.Second), "expired key is up for grabs")
}

func TestWithLockSerializesCriticalSection(t *testing.T) {
	l := NewMemoryLocker()

	var inside, maxInside int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(context.Background(), l, "guest:h1:123", time.Second, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "never more than one holder per key")
}

func TestWithLockHonorsContext(t *testing.T) {
	l := NewMemoryLocker()
	require.True(t, l.Acquire("k", time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := WithLock(ctx, l, "k", time.Second, func() error {
		t.Fatal("critical section must not run")
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
