package florist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/florist-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
	"github.com/angelmondragon/florist-storefront/pkg/metrics"
)

const (
	defaultBaseURL    = "https://www.floristone.com/api"
	responseReadLimit = 1 << 20
	messageSnippetLen = 500
	detailsLimit      = 1000
)

// Operation names, used as metric labels.
const (
	OpGetProducts = "getproducts"
	OpCreateCart  = "cart_create"
	OpUpdateCart  = "cart_update"
	OpGetCart     = "cart_get"
	OpDeleteCart  = "cart_delete"
	OpCheckDates  = "checkdeliverydate"
	OpGetTotal    = "gettotal"
	OpPaymentKey  = "getauthorizenetkey"
	OpPlaceOrder  = "placeorder"
	OpOrderInfo   = "getorderinfo"
)

var htmlHeading = regexp.MustCompile(`(?is)<h[23][^>]*>([^<]+)</h[23]>`)

// Client calls the Florist One REST API with HTTP Basic credentials and
// returns the upstream JSON untouched.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	password   string
	metrics    *metrics.UpstreamMetrics
	logg       *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// NewClient builds a client from the upstream config. Missing credentials
// are allowed; every call will then be rejected upstream.
func NewClient(cfg config.FloristConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		apiKey:     cfg.APIKey,
		password:   cfg.Password,
		logg:       logger.Nop(),
	}
	WithBaseURL(cfg.BaseURL)(client)
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// ProductQuery mirrors the listing parameters. Empty values are omitted and
// category "all" means no filter.
type ProductQuery struct {
	Category string
	Count    string
	Start    string
}

func (c *Client) GetProducts(ctx context.Context, q ProductQuery) ([]byte, error) {
	query := url.Values{}
	if q.Category != "" && !strings.EqualFold(q.Category, "all") {
		query.Set("category", q.Category)
	}
	if q.Count != "" {
		query.Set("count", q.Count)
	}
	if q.Start != "" {
		query.Set("start", q.Start)
	}
	return c.call(ctx, OpGetProducts, http.MethodGet, "/rest/flowershop/getproducts", query, nil)
}

func (c *Client) GetProduct(ctx context.Context, code string) ([]byte, error) {
	return c.call(ctx, OpGetProducts, http.MethodGet, "/rest/flowershop/getproducts", url.Values{"code": {code}}, nil)
}

func (c *Client) CreateCart(ctx context.Context) ([]byte, error) {
	return c.call(ctx, OpCreateCart, http.MethodPost, "/rest/shoppingcart", nil, []byte("{}"))
}

// CartMutation is one shopping-cart PUT.
type CartMutation struct {
	SessionID   string
	Action      string
	ProductCode string
}

// UpdateCart applies a mutation. An upstream 500 comes back as an HTML page;
// its heading becomes the error message.
func (c *Client) UpdateCart(ctx context.Context, m CartMutation) ([]byte, error) {
	action := m.Action
	if action == "" {
		action = "add"
	}
	query := url.Values{"sessionid": {m.SessionID}, "action": {action}}
	if m.ProductCode != "" {
		query.Set("productcode", m.ProductCode)
	}
	body, err := c.call(ctx, OpUpdateCart, http.MethodPut, "/rest/shoppingcart", query, []byte("{}"))
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusInternalServerError {
		reason := "Internal server error from Florist One API"
		if match := htmlHeading.FindSubmatch(se.body); match != nil {
			reason = strings.TrimSpace(string(match[1]))
		}
		msg := fmt.Sprintf("Florist One API Error (500): %s. Product code: %s, Session: %s", reason, m.ProductCode, m.SessionID)
		return nil, pkgerrors.Upstream(http.StatusInternalServerError, msg).WithDetails(truncate(string(se.body), detailsLimit))
	}
	return body, err
}

func (c *Client) GetCart(ctx context.Context, sessionID string) ([]byte, error) {
	return c.call(ctx, OpGetCart, http.MethodGet, "/rest/shoppingcart", url.Values{"sessionid": {sessionID}}, nil)
}

func (c *Client) DeleteCart(ctx context.Context, sessionID string) ([]byte, error) {
	return c.call(ctx, OpDeleteCart, http.MethodDelete, "/rest/shoppingcart", url.Values{"sessionid": {sessionID}}, nil)
}

// CheckDeliveryDates lists the delivery dates open for zip.
func (c *Client) CheckDeliveryDates(ctx context.Context, zip string) ([]byte, error) {
	return c.call(ctx, OpCheckDates, http.MethodGet, "/rest/flowershop/checkdeliverydate", url.Values{"zipcode": {zip}}, nil)
}

// CheckDeliveryDate checks one date for zip.
func (c *Client) CheckDeliveryDate(ctx context.Context, zip, date string) ([]byte, error) {
	return c.call(ctx, OpCheckDates, http.MethodGet, "/rest/flowershop/checkdeliverydate", url.Values{"zipcode": {zip}, "date": {date}}, nil)
}

// GetTotal prices products, a JSON-encoded array of product/recipient entries.
func (c *Client) GetTotal(ctx context.Context, products string) ([]byte, error) {
	return c.call(ctx, OpGetTotal, http.MethodGet, "/rest/flowershop/gettotal", url.Values{"products": {products}}, nil)
}

func (c *Client) AuthorizeNetKey(ctx context.Context) ([]byte, error) {
	return c.call(ctx, OpPaymentKey, http.MethodGet, "/rest/flowershop/getauthorizenetkey", nil, nil)
}

// PlaceOrder forwards an already-encoded order body.
func (c *Client) PlaceOrder(ctx context.Context, body []byte) ([]byte, error) {
	return c.call(ctx, OpPlaceOrder, http.MethodPost, "/rest/flowershop/placeorder", nil, body)
}

func (c *Client) OrderInfo(ctx context.Context, orderNo string) ([]byte, error) {
	return c.call(ctx, OpOrderInfo, http.MethodGet, "/rest/flowershop/getorderinfo", url.Values{"orderno": {orderNo}}, nil)
}

// statusError is a non-2xx upstream reply. It unwraps to the UPSTREAM_ERROR
// handed to callers.
type statusError struct {
	status int
	body   []byte
	err    *pkgerrors.Error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body []byte) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "florist client not configured")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build upstream request")
	}
	req.SetBasicAuth(c.apiKey, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	ctx = c.logg.WithFields(ctx, map[string]any{"upstream_op": op, "upstream_method": method})
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Observe(op, 0, time.Since(start))
		c.logg.Error(ctx, "upstream.call", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		return nil, pkgerrors.Upstream(status, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	c.metrics.Observe(op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, pkgerrors.Upstream(http.StatusBadGateway, "read upstream response: "+err.Error())
	}
	c.logg.Debug(c.logg.WithField(ctx, "upstream_status", resp.StatusCode), "upstream.call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("API returned status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(raw)), messageSnippetLen))
		return nil, &statusError{
			status: resp.StatusCode,
			body:   raw,
			err:    pkgerrors.Upstream(resp.StatusCode, msg).WithDetails(truncate(string(raw), detailsLimit)),
		}
	}
	if looksLikeErrorPage(raw) {
		msg := fmt.Sprintf("API returned error. Status: %d. Response: %s", resp.StatusCode, truncate(string(raw), messageSnippetLen))
		return nil, pkgerrors.Upstream(http.StatusInternalServerError, msg)
	}
	if !json.Valid(raw) {
		msg := "API response is not valid JSON. Response: " + truncate(string(raw), messageSnippetLen)
		return nil, pkgerrors.Upstream(http.StatusInternalServerError, msg)
	}
	return raw, nil
}

// looksLikeErrorPage catches HTML pages and bare "404" bodies served with a 2xx.
func looksLikeErrorPage(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "<html") || strings.Contains(s, "<!DOCTYPE") || strings.TrimSpace(s) == "404"
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
