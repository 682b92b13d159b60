package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/florist-storefront/api/responses"
	"github.com/angelmondragon/florist-storefront/pkg/auth"
	"github.com/angelmondragon/florist-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/florist-storefront/pkg/errors"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
)

// Shopper identifies the browser through a signed cookie, minting a new
// shopper when the cookie is missing, expired or forged.
func Shopper(cfg config.StorefrontConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return shopperWithClock(cfg, logg, time.Now)
}

func shopperWithClock(cfg config.StorefrontConfig, logg *logger.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shopperID := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
				if claims, parseErr := auth.ParseShopperToken(cfg, cookie.Value); parseErr == nil {
					shopperID = claims.ShopperID
				} else if logg != nil {
					logg.Debug(logg.WithField(r.Context(), "reason", parseErr.Error()), "shopper cookie rejected")
				}
			}

			if shopperID == "" {
				issued := now()
				token, id, err := auth.MintShopperToken(cfg, issued, "")
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue shopper session"))
					return
				}
				shopperID = id
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					Expires:  issued.Add(cfg.ShopperTTL),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithShopperID(r.Context(), shopperID)
			if logg != nil {
				ctx = logg.WithShopper(ctx, shopperID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
