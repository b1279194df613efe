package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch deletes the lock only when it still holds our token,
// so an expired holder never releases a newer owner's lock.
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// ErrLockTimeout is returned when the context ends before the lock is acquired.
var ErrLockTimeout = errors.New("redis lock: acquire timed out")

// Locker hands out exclusive leases on arbitrary keys.
type Locker struct {
	rdb  *rd.Client
	ttl  time.Duration
	poll time.Duration
}

func NewLocker(rdb *rd.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl, poll: 25 * time.Millisecond}
}

// Lock blocks until key is held or ctx is done. The returned func releases it.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, err
		}
		if ok {
			return func() {
				// Release on a fresh context: the caller's may already be cancelled.
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = l.rdb.Eval(rctx, luaReleaseIfMatch, []string{key}, token).Err()
			}, nil
		}

		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ErrLockTimeout
		case <-t.C:
		}
	}
}
