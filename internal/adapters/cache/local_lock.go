package cache

import (
	"context"
	"sync"
	"time"

	"github.com/swasthya/hms-backend/internal/domain/providers"
)

// LocalLock implements LockProvider with one mutex per key inside a single process
type LocalLock struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLock creates an in-process lock provider
func NewLocalLock() providers.LockProvider {
	return &LocalLock{locks: make(map[string]*keyedLock)}
}

// Acquire blocks until the lock for key is held or ctx is done. ttl is not
// needed in-process and is ignored.
func (l *LocalLock) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.unref(key, kl)
		})
	}, nil
}

func (l *LocalLock) unref(key string, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
