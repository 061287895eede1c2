package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/app"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/httpserver"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/redisclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	redisClient := redisclient.New(cfg.Redis)
	if redisClient != nil {
		if err := redisclient.Ping(ctx, redisClient); err != nil {
			log.Fatalf("connect redis: %v", err)
		}
	} else {
		logger.Info("redis not configured, caching in process only")
	}

	container, err := app.NewContainer(ctx, cfg, redisClient, app.Options{
		Observability: true,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}()

	container.HealthMon.Start(ctx)

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	logger.Info("analytics server listening",
		slog.String("addr", cfg.Server.ListenAddr),
		slog.String("upstream", cfg.Upstream.BaseURL),
	)
	if err := server.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server stopped: %v", err)
	}
}
