package middlewares

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestTimeout bounds the user context handed to services so storage calls
// made while serving a request give up after d.
func RequestTimeout(d time.Duration) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		timeoutCtx, cancel := context.WithTimeout(ctx.UserContext(), d)
		defer cancel()
		ctx.SetUserContext(timeoutCtx)
		return ctx.Next()
	}
}
