package cart

import (
	"context"

	"github.com/angelmondragon/florist-storefront/internal/gateway"
)

// Remote is the slice of the commerce gateway the cart depends on.
type Remote interface {
	CreateCart(ctx context.Context) (string, error)
	GetCart(ctx context.Context, cartID string) ([]gateway.CartLine, error)
	GetProduct(ctx context.Context, code string) (gateway.Product, error)
	UpdateCart(ctx context.Context, update gateway.CartUpdate) error
	DeleteCart(ctx context.Context, cartID string) error
}
