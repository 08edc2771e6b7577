package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Release only deletes the key while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	lockRetryMin = 25 * time.Millisecond
	lockRetryMax = 500 * time.Millisecond
)

// Locker is a per-key mutual exclusion shared by every process using the
// same Redis. Leases expire after ttl so a crashed holder cannot wedge a key.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewLocker(c *Cache, ttl, wait time.Duration) *Locker {
	return &Locker{client: c.client, ttl: ttl, wait: wait}
}

// Lock blocks until key is acquired, the wait budget is spent or ctx ends.
// The returned func releases the lease.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := ulid.Make().String()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	delay := lockRetryMin
	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("lock %s: %w", key, ErrLockTimeout)
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
			}
			return nil, fmt.Errorf("lock %s: %w", key, ErrLockTimeout)
		case <-time.After(delay):
		}
		delay = min(delay*2, lockRetryMax)
	}
}

func (l *Locker) unlockFunc(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			slog.Warn("Failed to release lock, it will expire", "key", key, "ttl", l.ttl, "error", err)
		}
	}
}
