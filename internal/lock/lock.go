// Package lock provides the lease that keeps one sync job per
// (store, job type) running across worker instances.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out named, expiring leases. Acquire is non-blocking: a false
// return means somebody else holds the lease.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RedisLocker implements Locker with SET NX PX. Release only deletes the key
// when it still carries our token, so an expired lease taken over by another
// instance is never clobbered.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		// Best effort; the TTL reclaims the lease if this fails.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Result()
	}
	return release, true, nil
}

// MemoryLocker is the single-process Locker used in tests and development.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.held[key]; ok && time.Now().Before(until) {
		return nil, false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, true, nil
}
