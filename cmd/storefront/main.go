package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/florist-storefront/api/controllers"
	"github.com/angelmondragon/florist-storefront/api/routes"
	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/angelmondragon/florist-storefront/internal/payment"
	"github.com/angelmondragon/florist-storefront/internal/session"
	"github.com/angelmondragon/florist-storefront/internal/storefront"
	"github.com/angelmondragon/florist-storefront/pkg/config"
	"github.com/angelmondragon/florist-storefront/pkg/db"
	"github.com/angelmondragon/florist-storefront/pkg/env"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/angelmondragon/florist-storefront/pkg/metrics"
	"github.com/angelmondragon/florist-storefront/pkg/migrate"
	"github.com/angelmondragon/florist-storefront/pkg/redis"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	pingers := map[string]controllers.Pinger{}
	backend, closers, err := sessionBackend(context.Background(), cfg, logg, pingers)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap session store", err)
		os.Exit(1)
	}
	defer func() {
		var closeErr error
		for _, c := range closers {
			closeErr = multierr.Append(closeErr, c.Close())
		}
		if closeErr != nil {
			logg.Error(context.Background(), "error closing resources", closeErr)
		}
	}()

	gw, err := gateway.NewClient(cfg.Storefront.ProxyBaseURL, gateway.WithTimeout(cfg.Storefront.ProxyTimeout))
	if err != nil {
		logg.Error(context.Background(), "failed to configure proxy client", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	tokenizer := payment.NewAcceptClient(
		payment.WithEndpoint(cfg.AuthorizeNet.Endpoint),
		payment.WithTimeout(cfg.AuthorizeNet.Timeout),
	)

	factory := func(store session.Store) (*storefront.Controller, error) {
		return storefront.NewController(storefront.Deps{
			Gateway:    gw,
			Store:      store,
			Tokenizer:  tokenizer,
			Checkout:   cfg.Checkout,
			APILoginID: cfg.AuthorizeNet.APILoginID,
			Metrics:    checkoutMetrics,
			Logger:     logg,
		})
	}
	registry, err := storefront.NewRegistry(backend, factory, cfg.Storefront.ShopperTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build storefront registry", err)
		os.Exit(1)
	}
	catalog, err := storefront.NewCatalog(gw, cfg.Checkout.ProductPageSize, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build catalog", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go registry.Run(runCtx, sweepInterval)

	addr := ":" + env.First(cfg.Storefront.Port, "PORT")
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"proxy":           cfg.Storefront.ProxyBaseURL,
		"session_backend": cfg.Session.Normalized(),
		"api_login_id":    config.Masked(cfg.AuthorizeNet.APILoginID),
	})
	logg.Info(ctx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewStorefrontRouter(routes.StorefrontDeps{
			Config:   cfg,
			Logger:   logg,
			Registry: registry,
			Catalog:  catalog,
			Pingers:  pingers,
			Gatherer: reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "storefront server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "storefront server stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "storefront server stopped")
}

// sessionBackend opens the configured cart-session store and registers its
// connections for readiness checks and shutdown.
func sessionBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger, pingers map[string]controllers.Pinger) (session.Backend, []io.Closer, error) {
	switch cfg.Session.Normalized() {
	case config.SessionBackendRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		pingers["redis"] = client
		return session.NewRedisBackend(client, cfg.Session.Key, cfg.Session.TTL), []io.Closer{client}, nil

	case config.SessionBackendSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, nil, multierr.Append(fmt.Errorf("migrations: %w", err), client.Close())
		}
		pingers["db"] = client
		return session.NewSQLBackend(client.DB(), cfg.Session.Key, cfg.Session.TTL), []io.Closer{client}, nil

	default:
		logg.Warn(ctx, "cart sessions kept in memory, they will not survive a restart")
		return session.NewMemoryBackend(), nil, nil
	}
}
