package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/florist-storefront/internal/florist"
	"github.com/angelmondragon/florist-storefront/internal/gateway"
	"github.com/angelmondragon/florist-storefront/internal/payment"
	"github.com/angelmondragon/florist-storefront/internal/session"
	"github.com/angelmondragon/florist-storefront/internal/storefront"
	"github.com/angelmondragon/florist-storefront/pkg/config"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/angelmondragon/florist-storefront/pkg/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		Storefront: config.StorefrontConfig{
			JWTSecret:  "test-secret",
			JWTIssuer:  "florist-test",
			ShopperTTL: time.Hour,
			CookieName: "florist_shopper",
		},
		Checkout:  config.CheckoutConfig{MinPostalLength: 5, TotalDebounce: time.Hour},
		RateLimit: config.RateLimitConfig{OrderWindow: time.Minute, OrderIPLimit: 2},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

type stubUpstream struct {
	mu      sync.Mutex
	added   []string
	created int
	placed  int
}

func (s *stubUpstream) GetProducts(context.Context, florist.ProductQuery) ([]byte, error) {
	return []byte(`{"PRODUCTS":[{"CODE":"F1","NAME":"Roses","PRICE":59.99}],"TOTAL":1}`), nil
}
func (s *stubUpstream) GetProduct(context.Context, string) ([]byte, error) {
	return []byte(`{"PRODUCTS":[{"CODE":"F1","NAME":"Roses","PRICE":59.99,"SMALL":"roses.jpg"}]}`), nil
}
func (s *stubUpstream) CreateCart(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return []byte(fmt.Sprintf(`{"SESSIONID":"S%d"}`, s.created)), nil
}
func (s *stubUpstream) UpdateCart(_ context.Context, m florist.CartMutation) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, m.ProductCode)
	return []byte(`{"status":"ok"}`), nil
}
func (s *stubUpstream) GetCart(context.Context, string) ([]byte, error) {
	return []byte(`{"products":[]}`), nil
}
func (s *stubUpstream) DeleteCart(context.Context, string) ([]byte, error) {
	return []byte(`{}`), nil
}
func (s *stubUpstream) CheckDeliveryDates(context.Context, string) ([]byte, error) {
	return []byte(`{"DATES":["12/24/2024","12/26/2024"]}`), nil
}
func (s *stubUpstream) CheckDeliveryDate(context.Context, string, string) ([]byte, error) {
	return []byte(`{"DATE_AVAILABLE":true}`), nil
}
func (s *stubUpstream) GetTotal(context.Context, string) ([]byte, error) {
	return []byte(`{"ORDERTOTAL":69.99,"SUBTOTAL":59.99,"TAXTOTAL":0,"DELIVERYCHARGETOTAL":10}`), nil
}
func (s *stubUpstream) AuthorizeNetKey(context.Context) ([]byte, error) {
	return []byte(`{"AUTHORIZENET_KEY":"client-key"}`), nil
}
func (s *stubUpstream) PlaceOrder(context.Context, []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed++
	return []byte(fmt.Sprintf(`{"ORDERNO":"%d"}`, 1000+s.placed)), nil
}
func (s *stubUpstream) OrderInfo(context.Context, string) ([]byte, error) {
	return []byte(`{"ORDERNO":"1001"}`), nil
}

type memoryOrderStore struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryOrderStore() *memoryOrderStore {
	return &memoryOrderStore{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryOrderStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryOrderStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryOrderStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (m *memoryOrderStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func newProxy(cfg *config.Config, up *stubUpstream, gatherer prometheus.Gatherer) http.Handler {
	return NewProxyRouter(ProxyDeps{
		Config:   cfg,
		Logger:   testLogger(),
		Upstream: up,
		Redis:    newMemoryOrderStore(),
		Gatherer: gatherer,
	})
}

func TestProxyHealth(t *testing.T) {
	router := newProxy(testConfig(), &stubUpstream{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProxyOrderPlacementIsIdempotentAndLimited(t *testing.T) {
	up := &stubUpstream{}
	router := newProxy(testConfig(), up, nil)

	place := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/order/place", strings.NewReader(`{"products":[]}`))
		req.RemoteAddr = "203.0.113.9:1000"
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := place("attempt-1")
	replay := place("attempt-1")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, up.placed)

	assert.Equal(t, http.StatusTooManyRequests, place("attempt-2").Code)
}

func TestProxyServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewUpstreamMetrics(reg)
	m.Observe("get_cart", http.StatusOK, time.Millisecond)
	router := newProxy(testConfig(), &stubUpstream{}, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "get_cart")
}

type stubTokenizer struct{}

func (stubTokenizer) Tokenize(context.Context, payment.Card, payment.Credentials) (string, error) {
	return "opaque-token", nil
}

// newStorefront serves the storefront against a live proxy built on up.
func newStorefront(t *testing.T, cfg *config.Config, up *stubUpstream) http.Handler {
	t.Helper()
	proxySrv := httptest.NewServer(newProxy(cfg, up, nil))
	t.Cleanup(proxySrv.Close)

	gw, err := gateway.NewClient(proxySrv.URL + "/api")
	require.NoError(t, err)

	logg := testLogger()
	factory := func(store session.Store) (*storefront.Controller, error) {
		return storefront.NewController(storefront.Deps{
			Gateway:   gw,
			Store:     store,
			Tokenizer: stubTokenizer{},
			Checkout:  cfg.Checkout,
			Logger:    logg,
		})
	}
	reg, err := storefront.NewRegistry(session.NewMemoryBackend(), factory, 0, logg)
	require.NoError(t, err)
	catalog, err := storefront.NewCatalog(gw, 12, logg)
	require.NoError(t, err)

	return NewStorefrontRouter(StorefrontDeps{
		Config:   cfg,
		Logger:   logg,
		Registry: reg,
		Catalog:  catalog,
	})
}

type viewEnvelope struct {
	Data struct {
		Cart struct {
			Count           int  `json:"count"`
			CheckoutEnabled bool `json:"checkoutEnabled"`
		} `json:"cart"`
	} `json:"data"`
}

func TestStorefrontShopperFlow(t *testing.T) {
	cfg := testConfig()
	up := &stubUpstream{}
	router := newStorefront(t, cfg, up)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shop/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 1, up.created)

	body := `{"type":"add_item","product":{"code":"F1","name":"Roses","price":"59.99"}}`
	req := httptest.NewRequest(http.MethodPost, "/shop/events", strings.NewReader(body))
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view viewEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 1, view.Data.Cart.Count)
	assert.True(t, view.Data.Cart.CheckoutEnabled)
	assert.Equal(t, []string{"F1"}, up.added)
	assert.Equal(t, 1, up.created, "the cookie maps back to the same shopper")
}

func TestStorefrontProductsListing(t *testing.T) {
	router := newStorefront(t, testConfig(), &stubUpstream{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shop/products?category=roses", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data storefront.Listing `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Data.Products, 1)
	assert.Equal(t, "Roses", payload.Data.Products[0].Name)
	assert.False(t, payload.Data.Sample)
}
