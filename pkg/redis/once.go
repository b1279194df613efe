package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// MarkOnce sets key only if absent. It returns true the first time and
// false for every repeat until the TTL expires.
func MarkOnce(ctx context.Context, rdb *rd.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Unmark clears a marker so a failed delivery can be processed again.
func Unmark(ctx context.Context, rdb *rd.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
