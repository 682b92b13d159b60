package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/florist-storefront/api/middleware"
	"github.com/angelmondragon/florist-storefront/internal/storefront"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
)

type fakeShopper struct {
	view   storefront.View
	err    error
	events []storefront.Event
}

func (f *fakeShopper) View() storefront.View { return f.view }

func (f *fakeShopper) Dispatch(_ context.Context, ev storefront.Event) (storefront.View, error) {
	f.events = append(f.events, ev)
	return f.view, f.err
}

type fakeCatalog struct {
	category string
	page     int
}

func (f *fakeCatalog) List(_ context.Context, category string, page int) storefront.Listing {
	f.category, f.page = category, page
	return storefront.Listing{Category: category, Page: page}
}

func lookupFor(s *fakeShopper, seen *string) Lookup {
	return func(_ context.Context, id string) (Shopper, error) {
		if seen != nil {
			*seen = id
		}
		return s, nil
	}
}

func withShopper(req *http.Request, id string) *http.Request {
	return req.WithContext(middleware.WithShopperID(req.Context(), id))
}

func TestStateRendersShopperView(t *testing.T) {
	shopper := &fakeShopper{view: storefront.View{Cart: storefront.CartView{Count: 2}}}
	var seen string
	req := withShopper(httptest.NewRequest(http.MethodGet, "/shop/state", nil), "shopper-1")
	rec := httptest.NewRecorder()

	State(lookupFor(shopper, &seen), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shopper-1", seen)
	var payload struct {
		Data struct {
			Cart struct {
				Count int `json:"count"`
			} `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 2, payload.Data.Cart.Count)
}

func TestStateWithoutShopperContext(t *testing.T) {
	rec := httptest.NewRecorder()
	State(lookupFor(&fakeShopper{}, nil), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shop/state", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEventsDispatchWithClientIP(t *testing.T) {
	shopper := &fakeShopper{}
	req := withShopper(httptest.NewRequest(http.MethodPost, "/shop/events", strings.NewReader(`{"type":"set_field","field":"customerName","value":"Ada"}`)), "s")
	req.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()

	Events(lookupFor(shopper, nil), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, shopper.events, 1)
	assert.Equal(t, storefront.EventSetField, shopper.events[0].Type)
	assert.Equal(t, "customerName", shopper.events[0].Field)
	assert.Equal(t, "198.51.100.7", shopper.events[0].ClientIP)
}

func TestEventsRejectsMissingType(t *testing.T) {
	shopper := &fakeShopper{}
	req := withShopper(httptest.NewRequest(http.MethodPost, "/shop/events", strings.NewReader(`{"value":"x"}`)), "s")
	rec := httptest.NewRecorder()

	Events(lookupFor(shopper, nil), nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, shopper.events)
}

func TestEventsRendersTypedFailure(t *testing.T) {
	shopper := &fakeShopper{err: pkgerrors.New(pkgerrors.CodeConflict, "Your order is already being submitted.")}
	req := withShopper(httptest.NewRequest(http.MethodPost, "/shop/events", strings.NewReader(`{"type":"clear_cart"}`)), "s")
	rec := httptest.NewRecorder()

	Events(lookupFor(shopper, nil), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeConflict), payload.Error.Code)
	assert.Equal(t, "Your order is already being submitted.", payload.Error.Message)
}

func TestEventsLookupFailure(t *testing.T) {
	lookup := func(context.Context, string) (Shopper, error) { return nil, errors.New("boom") }
	req := withShopper(httptest.NewRequest(http.MethodPost, "/shop/events", strings.NewReader(`{"type":"reload_cart"}`)), "s")
	rec := httptest.NewRecorder()

	Events(lookup, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProductsPaging(t *testing.T) {
	catalog := &fakeCatalog{}
	rec := httptest.NewRecorder()
	Products(catalog, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shop/products?category=roses&page=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "roses", catalog.category)
	assert.Equal(t, 3, catalog.page)

	rec = httptest.NewRecorder()
	Products(catalog, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shop/products?page=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
