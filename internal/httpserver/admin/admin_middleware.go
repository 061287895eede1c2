package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/app"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/httpserver/httputil"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/limits"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/requestctx"
)

const (
	adminAuthHeaderPrefix  = "bearer "
	adminAuthorizationName = "Authorization"
	requestIDLocalsKey     = "requestid"
)

// adminAuthMiddleware validates the bearer token when the container carries a
// token manager and attaches the request context either way.
func adminAuthMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := &requestctx.Context{RequestID: localString(c, requestIDLocalsKey)}

		if container.Tokens != nil {
			raw := strings.TrimSpace(c.Get(adminAuthorizationName))
			token := ""
			if raw != "" && strings.HasPrefix(strings.ToLower(raw), adminAuthHeaderPrefix) {
				token = strings.TrimSpace(raw[len(adminAuthHeaderPrefix):])
			}
			if token == "" {
				return httputil.WriteError(c, fiber.StatusUnauthorized, "admin authorization required")
			}
			claims, err := container.Tokens.Validate(token)
			if err != nil {
				return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired token")
			}
			rc.Subject = claims.Subject
		}

		c.Locals(requestctx.LocalsKey, rc)
		c.SetUserContext(requestctx.WithContext(userContext(c), rc))
		return c.Next()
	}
}

// adminRateLimitMiddleware throttles per admin subject, or per client IP when
// auth is off. Redis failures let the request through.
func adminRateLimitMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if container.RateLimiter == nil || !container.AdminLimits.Enabled() {
			return c.Next()
		}
		rc, _ := c.Locals(requestctx.LocalsKey).(*requestctx.Context)
		key := rc.ThrottleKey(c.IP())
		ctx := userContext(c)
		if err := container.RateLimiter.Allow(ctx, key, container.AdminLimits); err != nil {
			if errors.Is(err, limits.ErrLimitExceeded) {
				return httputil.WriteError(c, fiber.StatusTooManyRequests, err.Error())
			}
			logger(container).WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
			return c.Next()
		}
		defer container.RateLimiter.Release(ctx, key, container.AdminLimits)
		return c.Next()
	}
}

func logger(container *app.Container) *slog.Logger {
	if container.Logger != nil {
		return container.Logger
	}
	return slog.Default()
}

func userContext(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

func localString(c *fiber.Ctx, key string) string {
	if v, ok := c.Locals(key).(string); ok {
		return v
	}
	return ""
}
