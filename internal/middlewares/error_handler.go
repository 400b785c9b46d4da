package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/tokenauth/internal/render"
	"github.com/khanghh/tokenauth/params"
)

type errorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	APIVersion string    `json:"apiVersion"`
	Error      errorInfo `json:"error"`
}

func wantsHTML(ctx *fiber.Ctx) bool {
	return ctx.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML
}

// ErrorHandler renders errors that escaped the handlers. Unexpected errors are
// logged and reported without detail.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("unhandled error", "method", ctx.Method(), "path", ctx.Path(), "code", code, "error", err)
		message = "Internal server error"
	}

	if wantsHTML(ctx) {
		switch code {
		case fiber.StatusBadRequest:
			return render.RenderBadRequestErrorPage(ctx, message)
		case fiber.StatusUnauthorized:
			return render.RenderUnauthorizedErrorPage(ctx)
		case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
			return render.RenderNotFoundErrorPage(ctx)
		case fiber.StatusInternalServerError:
			return render.RenderInternalServerErrorPage(ctx)
		}
	}
	return ctx.Status(code).JSON(errorResponse{
		APIVersion: params.APIVersion,
		Error: errorInfo{
			Code:    code,
			Message: message,
		},
	})
}
