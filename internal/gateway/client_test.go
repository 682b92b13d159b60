package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestListProductsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("category"), "category=all must not be forwarded")
		assert.Equal(t, "12", r.URL.Query().Get("count"))
		assert.Equal(t, "13", r.URL.Query().Get("start"))
		_, _ = io.WriteString(w, `{"PRODUCTS":[{"CODE":"A"}],"TOTAL":30}`)
	})

	page, err := client.ListProducts(context.Background(), ProductQuery{Category: "all", Count: 12, Start: 13})
	require.NoError(t, err)
	assert.Equal(t, 30, page.Total)
}

func TestUpdateCartBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body CartUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, CartUpdate{CartID: "S1", Code: "R1", Action: ActionRemove}, body)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	require.NoError(t, client.UpdateCart(context.Background(), CartUpdate{CartID: "S1", Code: "R1", Action: ActionRemove}))
}

func TestEnvelopeErrorCarriesStatusAndMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Failed to retrieve cart","message":"API returned status 404","details":"gone"}`)
	})

	_, err := client.GetCart(context.Background(), "S1")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUpstream, typed.Code())
	assert.Equal(t, http.StatusNotFound, typed.Status())
	assert.Equal(t, "API returned status 404", typed.Message())
	assert.Equal(t, "gone", typed.Details())
	assert.True(t, IsGone(err))
}

func TestEnvelopeErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := client.DeleteCart(context.Background(), "S1")
	require.Error(t, err)
	assert.Equal(t, "API Error: 502 Bad Gateway", pkgerrors.As(err).Message())
}

func TestIsGoneClassification(t *testing.T) {
	assert.True(t, IsGone(pkgerrors.Upstream(500, "boom")))
	assert.True(t, IsGone(pkgerrors.Upstream(404, "missing")))
	assert.False(t, IsGone(pkgerrors.Upstream(400, "bad request")))
	assert.False(t, IsGone(pkgerrors.Upstream(502, "upstream unreachable")))
	assert.False(t, IsGone(pkgerrors.Upstream(504, "upstream timeout")))
	assert.False(t, IsGone(pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "GET /cart")))
	assert.True(t, IsGone(decodeError(ErrUndecodable, "cart")))
	assert.False(t, IsGone(nil))
}

func TestPlaceOrderSendsIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/order/place", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get(IdempotencyHeader))
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, 59.99, raw["ordertotal"])
		assert.IsType(t, "", raw["customer"])
		_, _ = io.WriteString(w, `{"ORDERNO":"778"}`)
	})

	orderNo, err := client.PlaceOrder(context.Background(), OrderRequest{
		Customer:   `{"NAME":"A"}`,
		Products:   `[]`,
		CCInfo:     `{"AUTHORIZENET_TOKEN":"tok"}`,
		OrderTotal: json.Number("59.99"),
	}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "778", orderNo)
}

func TestTransportFailureIsDependencyError(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1/api")
	require.NoError(t, err)
	_, err = client.CreateCart(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.False(t, IsGone(err))
}
