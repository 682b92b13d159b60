package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/florist-storefront/internal/florist"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
)

type fakeUpstream struct {
	body     []byte
	err      error
	query    florist.ProductQuery
	mutation florist.CartMutation
	args     []string
	placed   []byte
}

func (f *fakeUpstream) reply(args ...string) ([]byte, error) {
	f.args = args
	return f.body, f.err
}

func (f *fakeUpstream) GetProducts(_ context.Context, q florist.ProductQuery) ([]byte, error) {
	f.query = q
	return f.reply()
}
func (f *fakeUpstream) GetProduct(_ context.Context, code string) ([]byte, error) {
	return f.reply(code)
}
func (f *fakeUpstream) CreateCart(context.Context) ([]byte, error) { return f.reply() }
func (f *fakeUpstream) UpdateCart(_ context.Context, m florist.CartMutation) ([]byte, error) {
	f.mutation = m
	return f.reply()
}
func (f *fakeUpstream) GetCart(_ context.Context, id string) ([]byte, error) { return f.reply(id) }
func (f *fakeUpstream) DeleteCart(_ context.Context, id string) ([]byte, error) {
	return f.reply(id)
}
func (f *fakeUpstream) CheckDeliveryDates(_ context.Context, zip string) ([]byte, error) {
	return f.reply(zip)
}
func (f *fakeUpstream) CheckDeliveryDate(_ context.Context, zip, date string) ([]byte, error) {
	return f.reply(zip, date)
}
func (f *fakeUpstream) GetTotal(_ context.Context, products string) ([]byte, error) {
	return f.reply(products)
}
func (f *fakeUpstream) AuthorizeNetKey(context.Context) ([]byte, error) { return f.reply() }
func (f *fakeUpstream) PlaceOrder(_ context.Context, body []byte) ([]byte, error) {
	f.placed = body
	return f.reply()
}
func (f *fakeUpstream) OrderInfo(_ context.Context, orderNo string) ([]byte, error) {
	return f.reply(orderNo)
}

func newTestRouter(up Upstream) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/products", Products(up, nil))
	r.Get("/api/products/{code}", Product(up, nil))
	r.Post("/api/cart/create", CreateCart(up, nil))
	r.Put("/api/cart", UpdateCart(up, nil))
	r.Get("/api/cart", GetCart(up, nil))
	r.Delete("/api/cart", DeleteCart(up, nil))
	r.Get("/api/delivery/checkdates", CheckDeliveryDates(up, nil))
	r.Get("/api/delivery/checkdate", CheckDeliveryDate(up, nil))
	r.Get("/api/order/total", OrderTotal(up, nil))
	r.Get("/api/authorizenet/key", AuthorizeNetKey(up, nil))
	r.Post("/api/order/place", PlaceOrder(up, nil))
	r.Get("/api/order/{orderId}", OrderInfo(up, nil))
	return r
}

func serve(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var payload map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	return rec, payload
}

func TestRequiredParameters(t *testing.T) {
	h := newTestRouter(&fakeUpstream{body: []byte(`{}`)})
	cases := []struct {
		method, target, body, want string
	}{
		{http.MethodGet, "/api/cart", "", "cartId parameter is required"},
		{http.MethodDelete, "/api/cart?cartId=%20", "", "cartId parameter is required"},
		{http.MethodPut, "/api/cart", `{"code":"F1"}`, "cartId is required"},
		{http.MethodPut, "/api/cart", `{"cartId":"S1"}`, "code is required to add item to cart"},
		{http.MethodPut, "/api/cart", `{"cartId":"S1","action":"remove"}`, "code is required to remove item from cart"},
		{http.MethodGet, "/api/delivery/checkdates", "", "zipcode parameter is required"},
		{http.MethodGet, "/api/delivery/checkdate?zipcode=10001", "", "zipcode and date parameters are required"},
		{http.MethodGet, "/api/order/total", "", "products parameter is required"},
	}
	for _, tc := range cases {
		rec, payload := serve(t, h, tc.method, tc.target, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.target)
		assert.Equal(t, tc.want, payload["error"], tc.target)
	}
}

func TestRelaysUpstreamBodyVerbatim(t *testing.T) {
	up := &fakeUpstream{body: []byte(`{"PRODUCTS":[{"CODE":"F1"}],"TOTAL":1}`)}
	rec, _ := serve(t, newTestRouter(up), http.MethodGet, "/api/products?category=roses&count=12&start=13", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(up.body), rec.Body.String())
	assert.Equal(t, florist.ProductQuery{Category: "roses", Count: "12", Start: "13"}, up.query)
}

func TestUpdateCartClearNeedsNoCode(t *testing.T) {
	up := &fakeUpstream{body: []byte(`{"status":"ok"}`)}
	rec, _ := serve(t, newTestRouter(up), http.MethodPut, "/api/cart", `{"cartId":"S1","action":"clear","price":10}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, florist.CartMutation{SessionID: "S1", Action: "clear"}, up.mutation)
}

func TestUpdateCartDefaultsToAdd(t *testing.T) {
	up := &fakeUpstream{body: []byte(`{}`)}
	serve(t, newTestRouter(up), http.MethodPut, "/api/cart", `{"cartId":"S1","code":"F1"}`)

	assert.Equal(t, florist.CartMutation{SessionID: "S1", Action: "add", ProductCode: "F1"}, up.mutation)
}

func TestUpstreamErrorCarriesStatusAndDetails(t *testing.T) {
	up := &fakeUpstream{err: pkgerrors.Upstream(http.StatusNotFound, "API returned status 404: missing").WithDetails("missing")}
	rec, payload := serve(t, newTestRouter(up), http.MethodGet, "/api/cart?cartId=S1", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Failed to retrieve cart", payload["error"])
	assert.Equal(t, "API returned status 404: missing", payload["message"])
	assert.Equal(t, "missing", payload["details"])
	assert.Equal(t, []string{"S1"}, up.args)
}

func TestErrorWithoutDetailsOnDeliveryEndpoints(t *testing.T) {
	up := &fakeUpstream{err: pkgerrors.Upstream(http.StatusBadGateway, "dial tcp: refused")}
	rec, payload := serve(t, newTestRouter(up), http.MethodGet, "/api/delivery/checkdates?zipcode=10001", "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to check delivery dates", payload["error"])
	_, hasDetails := payload["details"]
	assert.False(t, hasDetails)
}

func TestPlaceOrderForwardsBody(t *testing.T) {
	up := &fakeUpstream{body: []byte(`{"ORDERNO":"12345"}`)}
	rec, payload := serve(t, newTestRouter(up), http.MethodPost, "/api/order/place", `{"products":[]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", payload["ORDERNO"])
	assert.JSONEq(t, `{"products":[]}`, string(up.placed))
}

func TestPlaceOrderRejectsMalformedBody(t *testing.T) {
	up := &fakeUpstream{}
	rec, _ := serve(t, newTestRouter(up), http.MethodPost, "/api/order/place", `{"products":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, up.placed)
}

func TestPathParameters(t *testing.T) {
	up := &fakeUpstream{body: []byte(`{}`)}
	h := newTestRouter(up)

	serve(t, h, http.MethodGet, "/api/products/F1-RED", "")
	assert.Equal(t, []string{"F1-RED"}, up.args)

	serve(t, h, http.MethodGet, "/api/order/98765", "")
	assert.Equal(t, []string{"98765"}, up.args)
}
