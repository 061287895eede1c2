// Package limits throttles admin API callers with Redis counters.
package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// LimitConfig bounds one caller. Zero disables the corresponding check.
type LimitConfig struct {
	RequestsPerMinute int
	ParallelRequests  int
}

// Enabled reports whether any check is active.
func (c LimitConfig) Enabled() bool {
	return c.RequestsPerMinute > 0 || c.ParallelRequests > 0
}

// RateLimiter keeps fixed-window request counts and in-flight counts in Redis,
// so several analyticsd replicas share one budget per caller.
type RateLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow admits one request for key. A successful Allow with ParallelRequests
// set must be paired with Release.
func (l *RateLimiter) Allow(ctx context.Context, key string, cfg LimitConfig) error {
	if l == nil || l.client == nil {
		return nil
	}
	if cfg.RequestsPerMinute > 0 {
		if err := l.countCheck(ctx, l.prefix+"rpm:"+key, time.Minute, cfg.RequestsPerMinute); err != nil {
			return err
		}
	}
	if cfg.ParallelRequests > 0 {
		if err := l.semaphoreAcquire(ctx, l.prefix+"sem:"+key, cfg.ParallelRequests); err != nil {
			return err
		}
	}
	return nil
}

func (l *RateLimiter) Release(ctx context.Context, key string, cfg LimitConfig) {
	if l == nil || l.client == nil {
		return
	}
	if cfg.ParallelRequests > 0 {
		l.client.Decr(ctx, l.prefix+"sem:"+key)
	}
}

// admitScript increments KEYS[1], arms its TTL on first use and refuses the
// request above ARGV[2]. With ARGV[3] == "1" a refused increment is undone.
var admitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if n > tonumber(ARGV[2]) then
	if ARGV[3] == "1" then
		redis.call("DECR", KEYS[1])
	end
	return 0
end
return 1
`)

func (l *RateLimiter) admit(ctx context.Context, key string, ttl time.Duration, limit int, undo bool) error {
	undoArg := "0"
	if undo {
		undoArg = "1"
	}
	ok, err := admitScript.Run(ctx, l.client, []string{key}, ttl.Milliseconds(), limit, undoArg).Int()
	if err != nil {
		return fmt.Errorf("limits: %s: %w", key, err)
	}
	if ok == 0 {
		return ErrLimitExceeded
	}
	return nil
}

func (l *RateLimiter) countCheck(ctx context.Context, key string, window time.Duration, limit int) error {
	slot := l.now().UTC().Unix() / int64(window.Seconds())
	return l.admit(ctx, fmt.Sprintf("%s:%d", key, slot), window, limit, false)
}

// semaphoreTTL reclaims slots leaked by requests that never released.
const semaphoreTTL = 5 * time.Minute

func (l *RateLimiter) semaphoreAcquire(ctx context.Context, key string, max int) error {
	return l.admit(ctx, key, semaphoreTTL, max, true)
}
