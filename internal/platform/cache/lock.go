package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another process holds the requested lock.
var ErrLocked = errors.New("platform/cache: lock held elsewhere")

// Locker hands out short-lived distributed locks stored in Redis.
type Locker struct {
	client *redislock.Client
}

// NewLocker wraps the redis client.
func NewLocker(rdb redis.UniversalClient) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

// TryLock obtains key for ttl without retrying. The returned release func is
// safe to call once the critical section is done.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	if l == nil || l.client == nil {
		return func(context.Context) {}, nil
	}
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("platform/cache: obtain %s: %w", key, err)
	}
	return func(ctx context.Context) {
		_ = lock.Release(ctx)
	}, nil
}
