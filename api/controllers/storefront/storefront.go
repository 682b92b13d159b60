// Package storefront serves the shopper-facing JSON API under /shop.
package storefront

import (
	"context"
	"net/http"

	"github.com/angelmondragon/florist-storefront/api/middleware"
	"github.com/angelmondragon/florist-storefront/api/responses"
	"github.com/angelmondragon/florist-storefront/api/validators"
	"github.com/angelmondragon/florist-storefront/internal/storefront"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
)

const maxPage = 10000

// Shopper is one shopper's storefront state.
type Shopper interface {
	View() storefront.View
	Dispatch(ctx context.Context, ev storefront.Event) (storefront.View, error)
}

// Lookup returns the state of the shopper identified by id.
type Lookup func(ctx context.Context, shopperID string) (Shopper, error)

// Catalog pages through products.
type Catalog interface {
	List(ctx context.Context, category string, page int) storefront.Listing
}

func shopperFor(lookup Lookup, r *http.Request) (Shopper, error) {
	if lookup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "storefront unavailable")
	}
	shopperID := middleware.ShopperIDFromContext(r.Context())
	if shopperID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shopper context missing")
	}
	return lookup(r.Context(), shopperID)
}

// State renders the shopper's current view.
func State(lookup Lookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopper, err := shopperFor(lookup, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shopper.View())
	}
}

// Events applies one shopper action and renders the resulting view.
func Events(lookup Lookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev storefront.Event
		if err := validators.DecodeJSONBody(r, &ev); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ev.ClientIP = middleware.ClientIP(r)

		shopper, err := shopperFor(lookup, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "event", string(ev.Type))
		}
		view, err := shopper.Dispatch(ctx, ev)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Products lists one catalog page. Query: category, page (1-based).
func Products(catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, maxPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalog.List(r.Context(), validators.QueryValue(r, "category"), page))
	}
}
