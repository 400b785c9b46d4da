package common

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/params"
)

type CookieOptions struct {
	Secure   bool
	HTTPOnly bool
	Domain   string
}

func (o CookieOptions) cookie(name string, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		Expires:  expires,
		Secure:   o.Secure,
		HTTPOnly: o.HTTPOnly,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// SetTokenCookies stores both tokens of a pair as cookies expiring together
// with the tokens.
func SetTokenCookies(ctx *fiber.Ctx, opts CookieOptions, pair *auth.TokenPair) {
	ctx.Cookie(opts.cookie(params.AccessTokenCookieName, pair.AccessToken, pair.AccessTokenExpires))
	ctx.Cookie(opts.cookie(params.RefreshTokenCookieName, pair.RefreshToken, pair.RefreshTokenExpires))
}

func ClearTokenCookies(ctx *fiber.Ctx, opts CookieOptions) {
	expired := time.Unix(0, 0)
	ctx.Cookie(opts.cookie(params.AccessTokenCookieName, "", expired))
	ctx.Cookie(opts.cookie(params.RefreshTokenCookieName, "", expired))
}
