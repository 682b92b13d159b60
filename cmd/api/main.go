package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/florist-storefront/api/controllers"
	"github.com/angelmondragon/florist-storefront/api/routes"
	"github.com/angelmondragon/florist-storefront/internal/florist"
	"github.com/angelmondragon/florist-storefront/pkg/config"
	"github.com/angelmondragon/florist-storefront/pkg/env"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/angelmondragon/florist-storefront/pkg/metrics"
	"github.com/angelmondragon/florist-storefront/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := cfg.Florist.Validate(); err != nil {
		logg.Warn(context.Background(), err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	upstream := florist.NewClient(cfg.Florist,
		florist.WithMetrics(metrics.NewUpstreamMetrics(reg)),
		florist.WithLogger(logg),
	)

	deps := routes.ProxyDeps{
		Config:   cfg,
		Logger:   logg,
		Upstream: upstream,
		Pingers:  map[string]controllers.Pinger{},
		Gatherer: reg,
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps.Redis = redisClient
		deps.Pingers["redis"] = redisClient
	} else {
		logg.Warn(context.Background(), "redis not configured, order idempotency and rate limiting disabled")
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":              cfg.App.Env,
		"addr":             addr,
		"upstream":         cfg.Florist.BaseURL,
		"florist_api_key":  config.Masked(cfg.Florist.APIKey),
		"florist_password": config.Masked(cfg.Florist.Password),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewProxyRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
