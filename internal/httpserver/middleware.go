package httpserver

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/observability"
)

// routePattern prefers the registered pattern so metrics stay low-cardinality.
func routePattern(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

func metricsMiddleware(obs *observability.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		obs.RecordHTTPRequest(c.UserContext(), c.Method(), routePattern(c), c.Response().StatusCode(), time.Since(start))
		return err
	}
}

func tracingMiddleware() fiber.Handler {
	tracer := otel.Tracer("credits-analytics/http")
	return func(c *fiber.Ctx) error {
		ctx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path())
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", routePattern(c)),
			attribute.Int("http.status_code", status),
		)
		if id, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("http.request_id", id))
		}
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		default:
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
