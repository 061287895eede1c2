package httpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/app"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
	adminroutes "github.com/ZilatAIOBC/NOMLT-sub002/internal/httpserver/admin"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/httpserver/httputil"
)

const defaultShutdownTimeout = 5 * time.Second

// Server serves the analytics admin API, health and metrics.
type Server struct {
	app *fiber.App
	cfg config.ServerConfig
}

// New builds the fiber app from the container and mounts every route.
func New(container *app.Container) (*Server, error) {
	if container == nil {
		return nil, fmt.Errorf("dependency container is required")
	}
	if container.Config == nil {
		return nil, fmt.Errorf("container missing config")
	}
	cfg := container.Config.Server

	bodyLimit := cfg.BodyLimitMB << 20
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ServerHeader:          "credits-analytics",
		BodyLimit:             bodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          httputil.ErrorHandler,
	})

	fiberApp.Use(requestid.New(), logger.New(), recover.New())

	obs := container.Observability
	if obs != nil {
		fiberApp.Use(metricsMiddleware(obs))
		if obs.TracerProvider() != nil {
			fiberApp.Use(tracingMiddleware())
		}
		if handler := obs.PrometheusHandler(); handler != nil {
			fiberApp.Get("/metrics", adaptor.HTTPHandler(handler))
		}
	}

	registerHealthRoutes(fiberApp, container)
	adminroutes.Register(fiberApp, container)

	return &Server{app: fiberApp, cfg: cfg}, nil
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is cancelled, then drains in-flight requests for at
// most the graceful shutdown delay.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.GracefulShutdownDelay
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// registerHealthRoutes serves the monitor's report. ?cached=true returns the
// last periodic sweep instead of probing now.
func registerHealthRoutes(fiberApp *fiber.App, container *app.Container) {
	fiberApp.Get("/healthz", func(c *fiber.Ctx) error {
		if container.HealthMon == nil {
			return c.JSON(fiber.Map{"status": "ok", "checks": fiber.Map{}})
		}
		if c.QueryBool("cached") {
			return c.JSON(container.HealthMon.Snapshot())
		}
		return c.JSON(container.HealthMon.Check(c.UserContext()))
	})
}
