// Package proxy exposes the Florist One API to browsers, adding the
// account credentials server side.
package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/florist-storefront/api/responses"
	"github.com/angelmondragon/florist-storefront/api/validators"
	"github.com/angelmondragon/florist-storefront/internal/florist"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
)

// Upstream is the slice of the Florist client the proxy relays to.
type Upstream interface {
	GetProducts(ctx context.Context, q florist.ProductQuery) ([]byte, error)
	GetProduct(ctx context.Context, code string) ([]byte, error)
	CreateCart(ctx context.Context) ([]byte, error)
	UpdateCart(ctx context.Context, m florist.CartMutation) ([]byte, error)
	GetCart(ctx context.Context, sessionID string) ([]byte, error)
	DeleteCart(ctx context.Context, sessionID string) ([]byte, error)
	CheckDeliveryDates(ctx context.Context, zip string) ([]byte, error)
	CheckDeliveryDate(ctx context.Context, zip, date string) ([]byte, error)
	GetTotal(ctx context.Context, products string) ([]byte, error)
	AuthorizeNetKey(ctx context.Context) ([]byte, error)
	PlaceOrder(ctx context.Context, body []byte) ([]byte, error)
	OrderInfo(ctx context.Context, orderNo string) ([]byte, error)
}

const (
	titleProduct    = "Failed to fetch product"
	titleProducts   = "Failed to fetch products"
	titleCreateCart = "Failed to create cart"
	titleUpdateCart = "Failed to update cart"
	titleGetCart    = "Failed to retrieve cart"
	titleDeleteCart = "Failed to destroy cart"
	titleDates      = "Failed to check delivery dates"
	titleDate       = "Failed to check delivery date"
	titleTotal      = "Failed to get order total"
	titleKey        = "Failed to get AuthorizeNet key"
	titlePlace      = "Failed to place order"
	titleOrderInfo  = "Failed to get order information"
)

// relay writes the upstream body, or the proxy error envelope under title.
func relay(w http.ResponseWriter, r *http.Request, logg *logger.Logger, title string, withDetails bool, body []byte, err error) {
	if err != nil {
		responses.WriteProxyError(r.Context(), logg, w, title, err, withDetails)
		return
	}
	responses.WriteRaw(w, http.StatusOK, body)
}

func Products(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := up.GetProducts(r.Context(), florist.ProductQuery{
			Category: validators.QueryValue(r, "category"),
			Count:    validators.QueryValue(r, "count"),
			Start:    validators.QueryValue(r, "start"),
		})
		relay(w, r, logg, titleProducts, true, body, err)
	}
}

func Product(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		body, err := up.GetProduct(r.Context(), code)
		relay(w, r, logg, titleProduct, true, body, err)
	}
}

func CreateCart(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := up.CreateCart(r.Context())
		relay(w, r, logg, titleCreateCart, true, body, err)
	}
}

type cartUpdateRequest struct {
	CartID string `json:"cartId"`
	Code   string `json:"code"`
	Action string `json:"action"`
}

// UpdateCart applies add, remove or clear. Only clear may omit the code.
func UpdateCart(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := validators.ReadJSONBody(r)
		if err != nil {
			responses.WriteBadRequest(w, "invalid request body")
			return
		}
		var req cartUpdateRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			responses.WriteBadRequest(w, "invalid request body")
			return
		}
		req.CartID = strings.TrimSpace(req.CartID)
		req.Code = strings.TrimSpace(req.Code)
		req.Action = strings.ToLower(strings.TrimSpace(req.Action))
		if req.Action == "" {
			req.Action = "add"
		}

		if req.CartID == "" {
			responses.WriteBadRequest(w, "cartId is required")
			return
		}
		if req.Code == "" && req.Action != "clear" {
			responses.WriteBadRequest(w, "code is required to "+req.Action+" item "+preposition(req.Action)+" cart")
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartSession(ctx, req.CartID)
		}
		body, err := up.UpdateCart(ctx, florist.CartMutation{
			SessionID:   req.CartID,
			Action:      req.Action,
			ProductCode: req.Code,
		})
		relay(w, r.WithContext(ctx), logg, titleUpdateCart, true, body, err)
	}
}

func preposition(action string) string {
	if action == "remove" {
		return "from"
	}
	return "to"
}

func GetCart(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := validators.RequireQuery(r, "cartId")
		if !ok {
			responses.WriteBadRequest(w, "cartId parameter is required")
			return
		}
		body, err := up.GetCart(r.Context(), params[0])
		relay(w, r, logg, titleGetCart, true, body, err)
	}
}

func DeleteCart(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := validators.RequireQuery(r, "cartId")
		if !ok {
			responses.WriteBadRequest(w, "cartId parameter is required")
			return
		}
		body, err := up.DeleteCart(r.Context(), params[0])
		relay(w, r, logg, titleDeleteCart, true, body, err)
	}
}

func CheckDeliveryDates(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := validators.RequireQuery(r, "zipcode")
		if !ok {
			responses.WriteBadRequest(w, "zipcode parameter is required")
			return
		}
		body, err := up.CheckDeliveryDates(r.Context(), params[0])
		relay(w, r, logg, titleDates, false, body, err)
	}
}

func CheckDeliveryDate(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := validators.RequireQuery(r, "zipcode", "date")
		if !ok {
			responses.WriteBadRequest(w, "zipcode and date parameters are required")
			return
		}
		body, err := up.CheckDeliveryDate(r.Context(), params[0], params[1])
		relay(w, r, logg, titleDate, false, body, err)
	}
}

func OrderTotal(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := validators.RequireQuery(r, "products")
		if !ok {
			responses.WriteBadRequest(w, "products parameter is required")
			return
		}
		body, err := up.GetTotal(r.Context(), params[0])
		relay(w, r, logg, titleTotal, false, body, err)
	}
}

func AuthorizeNetKey(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := up.AuthorizeNetKey(r.Context())
		relay(w, r, logg, titleKey, false, body, err)
	}
}

// PlaceOrder forwards the order body as sent.
func PlaceOrder(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := validators.ReadJSONBody(r)
		if err != nil {
			responses.WriteBadRequest(w, "invalid request body")
			return
		}
		body, err := up.PlaceOrder(r.Context(), raw)
		relay(w, r, logg, titlePlace, true, body, err)
	}
}

func OrderInfo(up Upstream, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		body, err := up.OrderInfo(r.Context(), orderID)
		relay(w, r, logg, titleOrderInfo, false, body, err)
	}
}
