package render

import (
	"github.com/gofiber/fiber/v2"
)

type LoginPageData struct {
	Email       string
	ClientID    string
	RedirectURI string
	State       string
	Scope       string
	ErrorMsg    string
}

func renderPage(ctx *fiber.Ctx, status int, name string, vars fiber.Map) error {
	body, err := RenderHTML(name, vars)
	if err != nil {
		return err
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.Status(status).SendString(body)
}

func RenderInternalServerErrorPage(ctx *fiber.Ctx) error {
	return renderPage(ctx, fiber.StatusInternalServerError, "error", fiber.Map{
		"code":    fiber.StatusInternalServerError,
		"message": "Something went wrong. Please try again later.",
	})
}

func RenderNotFoundErrorPage(ctx *fiber.Ctx) error {
	return renderPage(ctx, fiber.StatusNotFound, "error", fiber.Map{
		"code":    fiber.StatusNotFound,
		"message": "The page you are looking for does not exist.",
	})
}

func RenderBadRequestErrorPage(ctx *fiber.Ctx, message string) error {
	if message == "" {
		message = "The request could not be understood."
	}
	return renderPage(ctx, fiber.StatusBadRequest, "error", fiber.Map{
		"code":    fiber.StatusBadRequest,
		"message": message,
	})
}

func RenderUnauthorizedErrorPage(ctx *fiber.Ctx) error {
	return renderPage(ctx, fiber.StatusUnauthorized, "error", fiber.Map{
		"code":    fiber.StatusUnauthorized,
		"message": "You need to sign in to continue.",
	})
}

func RenderLoginPage(ctx *fiber.Ctx, data LoginPageData) error {
	statusCode := fiber.StatusOK
	if data.ErrorMsg != "" {
		statusCode = fiber.StatusUnauthorized
	}
	return renderPage(ctx, statusCode, "login", fiber.Map{
		"email":       data.Email,
		"clientID":    data.ClientID,
		"redirectURI": data.RedirectURI,
		"state":       data.State,
		"scope":       data.Scope,
		"errorMsg":    data.ErrorMsg,
	})
}
