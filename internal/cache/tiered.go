package cache

import (
	"context"
	"time"
)

// Tiered reads L1 then L2 and backfills L1 on an L2 hit. Writes go to both.
type Tiered struct {
	l1       Cache
	l2       Cache
	l1Expire time.Duration
}

// NewTiered combines two caches. l1Expire bounds how long backfilled entries live in L1.
func NewTiered(l1, l2 Cache, l1Expire time.Duration) *Tiered {
	return &Tiered{l1: l1, l2: l2, l1Expire: l1Expire}
}

func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	_ = c.l1.Set(ctx, key, val, c.l1Expire)
	return val, true, nil
}

func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := ttl
	if c.l1Expire > 0 && (l1TTL <= 0 || c.l1Expire < l1TTL) {
		l1TTL = c.l1Expire
	}
	if err := c.l1.Set(ctx, key, value, l1TTL); err != nil {
		return err
	}
	return c.l2.Set(ctx, key, value, ttl)
}

func (c *Tiered) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}
