package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisOpTimeout = 500 * time.Millisecond

type redisCache[V any] struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisCache stores JSON-encoded values under prefix. Redis failures degrade to cache misses.
func NewRedisCache[V any](client *redis.Client, prefix string, log *zap.Logger) Cache[string, V] {
	if log == nil {
		log = zap.NewNop()
	}
	return &redisCache[V]{client: client, prefix: prefix, log: log.Named("cache.redis")}
}

func (c *redisCache[V]) Get(key string) (V, bool) {
	var zero V
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		c.log.Warn("redis value decode failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return value, true
}

func (c *redisCache[V]) Set(key string, value V, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.log.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisCache[V]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_ = c.client.Del(ctx, c.prefix+key).Err()
}

func (c *redisCache[V]) Purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("redis purge failed", zap.String("prefix", c.prefix), zap.Error(err))
	}
}
