package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers processed keys for a while.
type IdempotencyStore interface {
	// Claim records key and reports whether this caller is the first.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget drops key so a later delivery is processed again.
	Forget(ctx context.Context, key string) error
}

type RedisIdempotencyStore struct {
	rdb redis.Cmdable
}

func NewRedisIdempotencyStore(rdb redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb}
}

func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (s *RedisIdempotencyStore) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
