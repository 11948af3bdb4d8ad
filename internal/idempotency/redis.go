package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func redisKey(key string) string { return fmt.Sprintf("idempotent-key:%s", key) }

func (g *RedisGuard) Claim(ctx context.Context, key string) (string, bool, error) {
	ok, err := g.rdb.SetNX(ctx, redisKey(key), Pending, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}
	val, err := g.rdb.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = g.rdb.SetNX(ctx, redisKey(key), Pending, g.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("claim idempotency key: %w", err)
		}
		return "", ok, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if val == Pending {
		return "", false, nil
	}
	return val, false, nil
}

func (g *RedisGuard) Complete(ctx context.Context, key, orderID string) error {
	if err := g.rdb.Set(ctx, redisKey(key), orderID, g.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
