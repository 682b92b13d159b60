package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// ShopperClaims identifies an anonymous storefront visitor. The subject is the
// shopper id used to scope the persisted cart session.
type ShopperClaims struct {
	ShopperID string `json:"shopper_id"`
	jwt.RegisteredClaims
}
