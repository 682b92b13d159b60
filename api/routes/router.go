package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/florist-storefront/api/controllers"
	"github.com/angelmondragon/florist-storefront/api/controllers/proxy"
	storefrontapi "github.com/angelmondragon/florist-storefront/api/controllers/storefront"
	"github.com/angelmondragon/florist-storefront/api/middleware"
	"github.com/angelmondragon/florist-storefront/internal/storefront"
	"github.com/angelmondragon/florist-storefront/pkg/config"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/florist-storefront/pkg/redis"
)

// orderStore backs both idempotency and rate limiting of order placement.
type orderStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// ProxyDeps wires cmd/api. Redis and Gatherer are optional.
type ProxyDeps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Upstream proxy.Upstream
	Redis    orderStore
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

// NewProxyRouter serves the credentialed Florist One passthrough under /api.
func NewProxyRouter(deps ProxyDeps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Storefront.AllowedOrigins),
	)

	mountHealth(r, cfg, logg, deps.Pingers, deps.Gatherer)

	orderPolicy := middleware.NewRateLimitPolicy("order", cfg.RateLimit.OrderWindow, cfg.RateLimit.OrderIPLimit)
	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
	)
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiterStore = deps.Redis
	}

	up := deps.Upstream
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", proxy.Products(up, logg))
		r.Get("/products/{code}", proxy.Product(up, logg))

		r.Post("/cart/create", proxy.CreateCart(up, logg))
		r.Put("/cart", proxy.UpdateCart(up, logg))
		r.Get("/cart", proxy.GetCart(up, logg))
		r.Delete("/cart", proxy.DeleteCart(up, logg))

		r.Get("/delivery/checkdates", proxy.CheckDeliveryDates(up, logg))
		r.Get("/delivery/checkdate", proxy.CheckDeliveryDate(up, logg))

		r.Get("/authorizenet/key", proxy.AuthorizeNetKey(up, logg))

		r.Get("/order/total", proxy.OrderTotal(up, logg))
		r.With(
			middleware.RateLimit(orderPolicy, limiterStore, logg),
			middleware.Idempotency(idempotencyStore, logg),
		).Post("/order/place", proxy.PlaceOrder(up, logg))
		r.Get("/order/{orderId}", proxy.OrderInfo(up, logg))
	})

	return r
}

// StorefrontDeps wires cmd/storefront.
type StorefrontDeps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *storefront.Registry
	Catalog  storefrontapi.Catalog
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

// NewStorefrontRouter serves the shopper JSON API under /shop.
func NewStorefrontRouter(deps StorefrontDeps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Storefront.AllowedOrigins),
	)

	mountHealth(r, cfg, logg, deps.Pingers, deps.Gatherer)

	var lookup storefrontapi.Lookup
	if deps.Registry != nil {
		lookup = registryLookup(deps.Registry)
	}

	r.Route("/shop", func(r chi.Router) {
		r.Get("/products", storefrontapi.Products(deps.Catalog, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.Shopper(cfg.Storefront, logg))
			r.Get("/state", storefrontapi.State(lookup, logg))
			r.Post("/events", storefrontapi.Events(lookup, logg))
		})
	})

	return r
}

func registryLookup(reg *storefront.Registry) storefrontapi.Lookup {
	return func(ctx context.Context, shopperID string) (storefrontapi.Shopper, error) {
		ctrl, err := reg.Get(ctx, shopperID)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	}
}

func mountHealth(r chi.Router, cfg *config.Config, logg *logger.Logger, pingers map[string]controllers.Pinger, gatherer prometheus.Gatherer) {
	r.Get("/health", controllers.Health())
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, pingers))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}
