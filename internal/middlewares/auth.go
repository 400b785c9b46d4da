package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/model"
	"github.com/khanghh/tokenauth/params"
)

const userLocalKey = "user"

type AccessTokenVerifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*model.User, error)
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AccessToken returns the access token from the bearer header, falling back
// to the access token cookie.
func AccessToken(ctx *fiber.Ctx) string {
	if token := BearerToken(ctx); token != "" {
		return token
	}
	return ctx.Cookies(params.AccessTokenCookieName)
}

// RequireAccessToken rejects requests without a valid access token and stores
// the resolved user for GetUser.
func RequireAccessToken(verifier AccessTokenVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := AccessToken(ctx)
		if token == "" {
			ctx.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="tokenauth"`)
			return fiber.NewError(fiber.StatusUnauthorized, "missing access token")
		}
		user, err := verifier.VerifyAccessToken(ctx.UserContext(), token)
		if errors.Is(err, auth.ErrTokenExpired) {
			ctx.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="tokenauth", error="invalid_token", error_description="token expired"`)
			return fiber.NewError(fiber.StatusUnauthorized, "access token expired")
		}
		if errors.Is(err, auth.ErrTokenInvalid) {
			ctx.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="tokenauth", error="invalid_token"`)
			return fiber.NewError(fiber.StatusUnauthorized, "invalid access token")
		}
		if err != nil {
			return err
		}
		ctx.Locals(userLocalKey, user)
		return ctx.Next()
	}
}

func GetUser(ctx *fiber.Ctx) *model.User {
	user, _ := ctx.Locals(userLocalKey).(*model.User)
	return user
}
