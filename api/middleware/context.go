package middleware

import "context"

type contextKey string

const ctxShopperID contextKey = "shopper_id"

// ShopperIDFromContext returns the storefront shopper id, or "".
func ShopperIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxShopperID).(string); ok {
		return v
	}
	return ""
}

// WithShopperID injects the shopper identifier into the context.
func WithShopperID(ctx context.Context, shopperID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxShopperID, shopperID)
}
