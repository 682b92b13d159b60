package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	defaultTimeout       = 30 * time.Second
	responseReadLimit    = 1 << 20
	errorEnvelopeMessage = "message"
)

// IdempotencyHeader carries the per-attempt key on order placement.
const IdempotencyHeader = "Idempotency-Key"

// Client talks to the local commerce proxy, which adds upstream credentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a proxy client rooted at baseURL (e.g. http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("proxy base url is required")
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ListProducts fetches one page of the catalog. The "all" category is not forwarded.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (ProductPage, error) {
	params := url.Values{}
	if q.Category != "" && q.Category != "all" {
		params.Set("category", q.Category)
	}
	if q.Count > 0 {
		params.Set("count", strconv.Itoa(q.Count))
	}
	if q.Start > 0 {
		params.Set("start", strconv.Itoa(q.Start))
	}
	body, err := c.do(ctx, http.MethodGet, "/products", params, nil, nil)
	if err != nil {
		return ProductPage{}, err
	}
	page, err := DecodeProductPage(body)
	if err != nil {
		return ProductPage{}, decodeError(err, "products")
	}
	return page, nil
}

// GetProduct fetches a single product by code.
func (c *Client) GetProduct(ctx context.Context, code string) (Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product code is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(code), nil, nil, nil)
	if err != nil {
		return Product{}, err
	}
	product, err := DecodeProduct(body)
	if err != nil {
		return Product{}, decodeError(err, "product")
	}
	return product, nil
}

// CreateCart opens a new remote cart session and returns its id.
func (c *Client) CreateCart(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/cart/create", nil, nil, nil)
	if err != nil {
		return "", err
	}
	id, err := DecodeSessionID(body)
	if err != nil {
		return "", decodeError(err, "cart session id")
	}
	return id, nil
}

// GetCart returns the lines of the remote cart.
func (c *Client) GetCart(ctx context.Context, cartID string) ([]CartLine, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart", url.Values{"cartId": {cartID}}, nil, nil)
	if err != nil {
		return nil, err
	}
	lines, err := DecodeCart(body)
	if err != nil {
		return nil, decodeError(err, "cart")
	}
	return lines, nil
}

// UpdateCart applies an add, remove or clear mutation.
func (c *Client) UpdateCart(ctx context.Context, update CartUpdate) error {
	_, err := c.do(ctx, http.MethodPut, "/cart", nil, update, nil)
	return err
}

// DeleteCart destroys the remote cart session.
func (c *Client) DeleteCart(ctx context.Context, cartID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart", url.Values{"cartId": {cartID}}, nil, nil)
	return err
}

// CheckDates lists the available delivery dates (MM/DD/YYYY) for zip.
func (c *Client) CheckDates(ctx context.Context, zip string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/delivery/checkdates", url.Values{"zipcode": {zip}}, nil, nil)
	if err != nil {
		return nil, err
	}
	dates, err := DecodeDates(body)
	if err != nil {
		return nil, decodeError(err, "delivery dates")
	}
	return dates, nil
}

// CheckDate asks whether a single MM/DD/YYYY date is deliverable to zip.
func (c *Client) CheckDate(ctx context.Context, zip, date string) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/delivery/checkdate", url.Values{"zipcode": {zip}, "date": {date}}, nil, nil)
	if err != nil {
		return false, err
	}
	ok, err := DecodeDateAvailable(body)
	if err != nil {
		return false, decodeError(err, "delivery date")
	}
	return ok, nil
}

// OrderTotal requests a quote for lines.
func (c *Client) OrderTotal(ctx context.Context, lines []TotalLine) (TotalQuote, error) {
	encoded, err := json.Marshal(lines)
	if err != nil {
		return TotalQuote{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode total products")
	}
	body, err := c.do(ctx, http.MethodGet, "/order/total", url.Values{"products": {string(encoded)}}, nil, nil)
	if err != nil {
		return TotalQuote{}, err
	}
	quote, err := DecodeTotal(body)
	if err != nil {
		return TotalQuote{}, decodeError(err, "order total")
	}
	return quote, nil
}

// PaymentKey fetches the payment processor client key.
func (c *Client) PaymentKey(ctx context.Context) (PaymentKey, error) {
	body, err := c.do(ctx, http.MethodGet, "/authorizenet/key", nil, nil, nil)
	if err != nil {
		return PaymentKey{}, err
	}
	key, err := DecodePaymentKey(body)
	if err != nil {
		return PaymentKey{}, decodeError(err, "payment key")
	}
	return key, nil
}

// PlaceOrder submits the order and returns the order number
// (UnknownOrderNumber when the response names none).
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest, idempotencyKey string) (string, error) {
	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set(IdempotencyHeader, idempotencyKey)
	}
	body, err := c.do(ctx, http.MethodPost, "/order/place", nil, req, headers)
	if err != nil {
		return "", err
	}
	return DecodeOrderNumber(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, headers http.Header) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, envelopeError(resp.StatusCode, resp.Status, body)
	}
	return body, nil
}

// envelopeError turns the proxy's {error, message, details} envelope into an
// upstream error carrying the response status.
func envelopeError(status int, statusText string, body []byte) error {
	message := ""
	var details any
	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		message = strings.TrimSpace(doc.Get(errorEnvelopeMessage).String())
		if message == "" {
			message = strings.TrimSpace(doc.Get("error").String())
		}
		if d := doc.Get("details"); d.Exists() {
			details = d.Value()
		}
	}
	if message == "" {
		message = "API Error: " + strings.TrimSpace(statusText)
	}
	return pkgerrors.Upstream(status, message).WithDetails(details)
}

func decodeError(err error, what string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+what)
}

// IsGone reports whether err means the remote resource no longer exists:
// a 404 or 500, or a payload matching no known shape. The proxy reports its
// own upstream transport failures as 502/504, which stay transient.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUndecodable) {
		return true
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeUpstream) {
		return false
	}
	status := pkgerrors.StatusOf(err)
	return status == http.StatusNotFound || status == http.StatusInternalServerError
}
