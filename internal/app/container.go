package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/auth"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/cache"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/health"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/limits"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/observability"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/redisclient"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/services/analytics"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/upstream"
)

// Container aggregates runtime dependencies for handlers, the CLI and services.
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Redis         *redis.Client
	Cache         cache.Cache
	Upstream      *upstream.Client
	Estimator     *pricing.Estimator
	Analytics     *analytics.Service
	Tokens        *auth.TokenManager
	HealthMon     *health.Monitor
	Observability *observability.Provider
	// RateLimiter is nil without Redis; AdminLimits then goes unenforced.
	RateLimiter *limits.RateLimiter
	AdminLimits limits.LimitConfig

	memory *cache.Memory
}

// Options selects optional parts of the container.
type Options struct {
	// Observability enables tracing and metrics; the CLI leaves it off.
	Observability bool
	Logger        *slog.Logger
}

// NewContainer builds a dependency container from the provided primitives.
// redisClient may be nil, in which case responses are cached in-process only.
func NewContainer(ctx context.Context, cfg *config.Config, redisClient *redis.Client, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	estimator, err := pricing.NewEstimator(cfg.Pricing.Tiers)
	if err != nil {
		return nil, fmt.Errorf("init pricing: %w", err)
	}
	sortKey, err := analytics.ParseSortKey(cfg.Reporting.DefaultSort)
	if err != nil {
		return nil, fmt.Errorf("reporting.default_sort: %w", err)
	}

	var obsProvider *observability.Provider
	if opts.Observability {
		obsProvider, err = observability.Setup(ctx, cfg.Observability)
		if err != nil {
			return nil, fmt.Errorf("setup observability: %w", err)
		}
	}

	container := &Container{
		Config:        cfg,
		Logger:        logger,
		Redis:         redisClient,
		Estimator:     estimator,
		Observability: obsProvider,
		AdminLimits: limits.LimitConfig{
			RequestsPerMinute: cfg.Admin.RequestsPerMinute,
			ParallelRequests:  cfg.Admin.ParallelRequests,
		},
	}
	if redisClient != nil {
		container.RateLimiter = limits.NewRateLimiter(redisClient, cfg.Cache.KeyPrefix+"limits:")
	}

	if cfg.Cache.Enabled {
		if err := container.buildCache(); err != nil {
			return nil, err
		}
	}

	container.Upstream = upstream.New(cfg.Upstream, upstream.Options{
		Cache:    container.Cache,
		CacheTTL: cfg.Cache.TTL,
		Metrics:  obsProvider,
		Logger:   logger,
	})

	container.Analytics = analytics.NewService(container.Upstream, estimator, analytics.Options{
		FeatureLimit:  cfg.Reporting.FeatureLimit,
		UserLimit:     cfg.Reporting.UserLimit,
		DefaultSort:   sortKey,
		MaxWindowDays: cfg.Reporting.MaxWindowDays,
		Logger:        logger,
		Metrics:       obsProvider,
	})

	if cfg.Admin.JWTSecret != "" {
		tokens, err := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, cfg.Admin.Issuer)
		if err != nil {
			return nil, fmt.Errorf("init admin tokens: %w", err)
		}
		container.Tokens = tokens
	}

	monitor := health.NewMonitor(cfg.Health, logger)
	monitor.Register("upstream", container.Upstream.Ping)
	if redisClient != nil {
		monitor.Register("redis", func(ctx context.Context) error {
			return redisclient.Ping(ctx, redisClient)
		})
	}
	container.HealthMon = monitor
	logger.Debug("health checks registered", slog.Any("checks", monitor.Names()))

	return container, nil
}

func (c *Container) buildCache() error {
	memory, err := cache.NewMemory(c.Config.Cache.L1MaxBytes)
	if err != nil {
		return fmt.Errorf("init memory cache: %w", err)
	}
	c.memory = memory
	if c.Redis == nil {
		c.Cache = memory
		return nil
	}
	remote := cache.NewRedis(c.Redis, c.Config.Cache.KeyPrefix, c.Config.Cache.TTL)
	c.Cache = cache.NewTiered(memory, remote, c.Config.Cache.L1TTL)
	return nil
}

// Close releases the in-process cache, the Redis client and flushes telemetry.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.memory != nil {
		c.memory.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	return c.Observability.Shutdown(ctx)
}
