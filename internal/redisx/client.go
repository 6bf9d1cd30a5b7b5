package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// MarkSeen set key dedup dengan TTL. Best effort; gagal redis tidak
// boleh menggagalkan reconciliation.
func MarkSeen(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) {
	_ = rdb.Set(ctx, key, "1", ttl).Err()
}
