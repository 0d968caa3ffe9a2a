package providers

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when a lock is still held after the wait deadline
var ErrLockNotAcquired = errors.New("lock not acquired")

// LockProvider serializes work on a key across goroutines or processes
type LockProvider interface {
	// Acquire blocks until the lock is held, ctx is done or the wait expires.
	// The returned function releases the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
