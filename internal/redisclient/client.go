package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
)

// New constructs a Redis client for the response cache. It returns nil when
// no URL is configured; the cache then stays in-process only.
func New(cfg config.RedisConfig) *redis.Client {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		// ParseURL rejects bare host:port and unix socket paths.
		opts = &redis.Options{
			Addr: raw,
		}
	}

	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	client.AddHook(disableMaintNotifications{})
	return client
}

const pingTimeout = 3 * time.Second

// Ping checks connectivity, bounded by pingTimeout unless ctx expires first.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errors.New("ping redis: client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// disableMaintNotifications swallows the CLIENT MAINT_NOTIFICATIONS handshake
// that go-redis sends on connect; older servers and miniredis reject it.
type disableMaintNotifications struct{}

func isMaintNotifications(cmd redis.Cmder) bool {
	args := cmd.Args()
	if len(args) < 2 || !strings.EqualFold(cmd.FullName(), "client") {
		return false
	}
	name, ok := args[1].(string)
	return ok && strings.EqualFold(name, "maint_notifications")
}

func (disableMaintNotifications) DialHook(next redis.DialHook) redis.DialHook { return next }

func (disableMaintNotifications) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if isMaintNotifications(cmd) {
			return nil
		}
		return next(ctx, cmd)
	}
}

func (disableMaintNotifications) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		kept := make([]redis.Cmder, 0, len(cmds))
		for _, cmd := range cmds {
			if !isMaintNotifications(cmd) {
				kept = append(kept, cmd)
			}
		}
		return next(ctx, kept)
	}
}
