package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	redisclient "github.com/swasthya/hms-backend/internal/infrastructure/clients/redis"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
)

const lockKeyPrefix = "lock:"

// releaseScript deletes the lock only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements LockProvider with SET NX so that several server
// processes share one lock per key.
type RedisLock struct {
	client       *redisclient.Client
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewRedisLock creates a Redis backed lock provider. maxWait bounds how long
// Acquire polls before giving up with ErrLockNotAcquired.
func NewRedisLock(client *redisclient.Client, maxWait time.Duration) providers.LockProvider {
	return &RedisLock{
		client:       client,
		pollInterval: 50 * time.Millisecond,
		maxWait:      maxWait,
	}
}

// Acquire blocks until the lock is held
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.Client().SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// Released with a fresh context so a cancelled request still frees the key.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client.Client(), []string{redisKey}, token).Err(); err != nil {
					observability.GetLogger().Warn().Err(err).Str("key", key).Msg("Failed to release lock")
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, providers.ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}
