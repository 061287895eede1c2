package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 5 * time.Minute

// Redis stores payloads under a key prefix in Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.client == nil || key == "" {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, c.prefixed(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value. A non-positive ttl falls back to the cache default.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil || key == "" || len(value) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, c.prefixed(key), value, ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefixed(key)).Err()
}

func (c *Redis) prefixed(key string) string {
	return c.prefix + key
}
