package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swasthya/hms-backend/internal/domain/providers"
)

func assertMutualExclusion(t *testing.T, lock providers.LockProvider) {
	t.Helper()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lock.Acquire(context.Background(), "patient:1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestLocalLock_MutualExclusion(t *testing.T) {
	assertMutualExclusion(t, NewLocalLock())
}

func TestLocalLock_IndependentKeys(t *testing.T) {
	lock := NewLocalLock()
	releaseA, err := lock.Acquire(context.Background(), "a", time.Second)
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := lock.Acquire(context.Background(), "b", time.Second)
	require.NoError(t, err)
	releaseB()
}

func TestLocalLock_ContextCancelled(t *testing.T) {
	lock := NewLocalLock()
	release, err := lock.Acquire(context.Background(), "a", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = lock.Acquire(ctx, "a", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLock_ReleaseIsIdempotent(t *testing.T) {
	lock := NewLocalLock().(*LocalLock)
	release, err := lock.Acquire(context.Background(), "a", time.Second)
	require.NoError(t, err)
	release()
	release()

	assert.Empty(t, lock.locks)
}

func TestRedisLock_MutualExclusion(t *testing.T) {
	_, client := setupMiniredis(t)
	assertMutualExclusion(t, NewRedisLock(client, 5*time.Second))
}

func TestRedisLock_GivesUpAfterMaxWait(t *testing.T) {
	_, client := setupMiniredis(t)
	lock := NewRedisLock(client, 100*time.Millisecond)

	release, err := lock.Acquire(context.Background(), "p", time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = lock.Acquire(context.Background(), "p", time.Minute)
	assert.ErrorIs(t, err, providers.ErrLockNotAcquired)
}

func TestRedisLock_ReleaseKeepsForeignToken(t *testing.T) {
	mr, client := setupMiniredis(t)
	lock := NewRedisLock(client, time.Second)

	release, err := lock.Acquire(context.Background(), "p", time.Minute)
	require.NoError(t, err)

	// Another holder took over after expiry.
	require.NoError(t, mr.Set("lock:p", "someone-else"))
	release()

	got, err := mr.Get("lock:p")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
