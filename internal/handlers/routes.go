package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/tokenauth/internal/audit"
	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/internal/common"
	"github.com/khanghh/tokenauth/internal/handlers/api"
	"github.com/khanghh/tokenauth/internal/handlers/web"
	"github.com/khanghh/tokenauth/internal/middlewares"
	"github.com/khanghh/tokenauth/params"
)

// SetupRoutes mounts the authentication endpoints under /auth.
func SetupRoutes(router fiber.Router, authService *auth.AuthService, recorder *audit.Recorder, cookieOpts common.CookieOptions) {
	var (
		authHandler  = api.NewAuthHandler(authService, recorder, cookieOpts)
		loginHandler = web.NewLoginHandler(authService, recorder, cookieOpts)
	)

	group := router.Group("/auth", middlewares.RequestTimeout(params.RequestTimeout))
	group.Post("/register", authHandler.PostRegister)
	group.Post("/token", authHandler.PostToken)
	group.Post("/logout", authHandler.PostLogout)
	group.Get("/me", middlewares.RequireAccessToken(authService), authHandler.GetMe)
	group.Get("/authorize", loginHandler.GetAuthorize)
	group.Get("/login", loginHandler.GetLogin)
	group.Post("/login", loginHandler.PostLogin)
}
