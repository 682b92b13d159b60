package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/florist-storefront/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintShopperToken issues a signed cookie token for shopperID. An empty id
// mints a new shopper.
func MintShopperToken(cfg config.StorefrontConfig, now time.Time, shopperID string) (string, string, error) {
	if cfg.JWTSecret == "" {
		return "", "", fmt.Errorf("jwt secret is required")
	}
	if cfg.JWTIssuer == "" {
		return "", "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ShopperTTL <= 0 {
		return "", "", fmt.Errorf("shopper ttl must be positive")
	}

	shopperID = strings.TrimSpace(shopperID)
	if shopperID == "" {
		shopperID = uuid.NewString()
	}

	claims := ShopperClaims{
		ShopperID: shopperID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWTIssuer,
			Subject:   shopperID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ShopperTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, shopperID, nil
}

// ParseShopperToken validates the cookie token and returns typed claims.
func ParseShopperToken(cfg config.StorefrontConfig, tokenString string) (*ShopperClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &ShopperClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.JWTIssuer),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.ShopperID) == "" {
		return nil, fmt.Errorf("shopper id missing from token")
	}
	return claims, nil
}
