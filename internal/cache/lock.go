package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"reluxrent/api/internal/utils"
)

// ErrLockBusy is returned when another request holds the property lock.
var ErrLockBusy = errors.New("property is locked by another booking operation")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultLockAttempts   = 5
	defaultLockRetryDelay = 100 * time.Millisecond
)

// PropertyLocker serializes booking writes per property with a Redis advisory lock.
// The storage-level night uniqueness remains the final guard; the lock keeps
// concurrent confirmations from burning a transaction each.
type PropertyLocker struct {
	rdb        redis.Cmdable
	ttl        time.Duration
	attempts   int
	retryDelay time.Duration
	newToken   func() string
}

// NewPropertyLocker creates a locker whose locks expire after ttl.
func NewPropertyLocker(rdb redis.Cmdable, ttl time.Duration) *PropertyLocker {
	return &PropertyLocker{
		rdb:        rdb,
		ttl:        ttl,
		attempts:   defaultLockAttempts,
		retryDelay: defaultLockRetryDelay,
		newToken:   uuid.NewString,
	}
}

// LockKey is the Redis key guarding a property.
func LockKey(propertyID utils.SixID) string {
	return fmt.Sprintf("lock:property:%s", propertyID)
}

// Lock acquires the property lock and returns a release function.
func (l *PropertyLocker) Lock(ctx context.Context, propertyID utils.SixID) (func(), error) {
	key := LockKey(propertyID)
	token := l.newToken()

	for attempt := 0; attempt < l.attempts; attempt++ {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(ctx, key, token) }, nil
		}
		if attempt == l.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
	return nil, ErrLockBusy
}

func (l *PropertyLocker) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		utils.GetLogger().Warn("Failed to release property lock", zap.String("key", key), zap.Error(err))
	}
}
