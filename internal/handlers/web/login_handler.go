package web

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/tokenauth/internal/audit"
	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/internal/common"
	"github.com/khanghh/tokenauth/internal/middlewares"
	"github.com/khanghh/tokenauth/internal/render"
	"github.com/khanghh/tokenauth/model"
)

type authorizeRequest struct {
	ClientID    string
	RedirectURI string
	State       string
	Scope       string
}

func (r authorizeRequest) scopes() []string {
	return strings.Fields(r.Scope)
}

func (r authorizeRequest) hasClient() bool {
	return r.ClientID != "" || r.RedirectURI != ""
}

func (r authorizeRequest) validate() string {
	if r.ClientID == "" {
		return MsgMissingClientID
	}
	if !validRedirectURI(r.RedirectURI) {
		return MsgInvalidRedirectURI
	}
	return ""
}

// LoginHandler serves the browser side of the authorization code flow.
type LoginHandler struct {
	authService AuthService
	recorder    *audit.Recorder
	cookieOpts  common.CookieOptions
}

func clientInfo(ctx *fiber.Ctx) audit.ClientInfo {
	return audit.ClientInfo{
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

func (h *LoginHandler) issueCode(ctx *fiber.Ctx, user *model.User, req authorizeRequest) error {
	code, err := h.authService.CreateAuthorizationCode(ctx.UserContext(), req.ClientID, req.RedirectURI, user.ID, req.scopes())
	if err != nil {
		return err
	}
	h.recorder.RecordCodeIssued(ctx.UserContext(), audit.CodeRecord{
		ClientInfo:  clientInfo(ctx),
		UserID:      user.ID,
		Email:       user.Email,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
	})
	return redirect(ctx, req.RedirectURI, "code", code, "state", req.State)
}

// currentUser resolves the access token cookie, if any, to a user.
func (h *LoginHandler) currentUser(ctx *fiber.Ctx) *model.User {
	token := middlewares.AccessToken(ctx)
	if token == "" {
		return nil
	}
	user, err := h.authService.VerifyAccessToken(ctx.UserContext(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrTokenInvalid) && !errors.Is(err, auth.ErrTokenExpired) {
			slog.Error("failed to verify access token", "error", err)
		}
		return nil
	}
	return user
}

// GetAuthorize starts the authorization code flow. Signed in users get a code
// straight away, everyone else is sent to the login page.
func (h *LoginHandler) GetAuthorize(ctx *fiber.Ctx) error {
	if ctx.Query("response_type") != "code" {
		return fiber.NewError(fiber.StatusBadRequest, MsgUnsupportedResponse)
	}
	req := authorizeRequest{
		ClientID:    ctx.Query("client_id"),
		RedirectURI: ctx.Query("redirect_uri"),
		State:       ctx.Query("state"),
		Scope:       ctx.Query("scope"),
	}
	if msg := req.validate(); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	if user := h.currentUser(ctx); user != nil {
		return h.issueCode(ctx, user, req)
	}
	return redirect(ctx, "/auth/login",
		"client_id", req.ClientID,
		"redirect_uri", req.RedirectURI,
		"state", req.State,
		"scope", req.Scope,
	)
}

func (h *LoginHandler) GetLogin(ctx *fiber.Ctx) error {
	req := authorizeRequest{
		ClientID:    ctx.Query("client_id"),
		RedirectURI: ctx.Query("redirect_uri"),
		State:       ctx.Query("state"),
		Scope:       ctx.Query("scope"),
	}
	if req.hasClient() {
		if msg := req.validate(); msg != "" {
			return fiber.NewError(fiber.StatusBadRequest, msg)
		}
	}
	return render.RenderLoginPage(ctx, render.LoginPageData{
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		State:       req.State,
		Scope:       req.Scope,
	})
}

func (h *LoginHandler) PostLogin(ctx *fiber.Ctx) error {
	req := authorizeRequest{
		ClientID:    ctx.FormValue("client_id"),
		RedirectURI: ctx.FormValue("redirect_uri"),
		State:       ctx.FormValue("state"),
		Scope:       ctx.FormValue("scope"),
	}
	email := strings.TrimSpace(ctx.FormValue("email", ctx.FormValue("username")))
	password := ctx.FormValue("password")

	if req.hasClient() {
		if msg := req.validate(); msg != "" {
			return fiber.NewError(fiber.StatusBadRequest, msg)
		}
	}

	pageData := render.LoginPageData{
		Email:       email,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		State:       req.State,
		Scope:       req.Scope,
	}
	if email == "" || password == "" {
		pageData.ErrorMsg = MsgMissingCredentials
		return render.RenderLoginPage(ctx, pageData)
	}

	user, err := h.authService.Authenticate(ctx.UserContext(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.recorder.RecordLogin(ctx.UserContext(), audit.LoginRecord{
			ClientInfo: clientInfo(ctx),
			Email:      email,
			GrantType:  "authorization_code",
			Reason:     err.Error(),
		})
		pageData.ErrorMsg = MsgLoginWrongCredentials
		return render.RenderLoginPage(ctx, pageData)
	}
	if err != nil {
		return err
	}
	h.recorder.RecordLogin(ctx.UserContext(), audit.LoginRecord{
		ClientInfo: clientInfo(ctx),
		UserID:     user.ID,
		Email:      user.Email,
		GrantType:  "authorization_code",
		Success:    true,
	})

	if !req.hasClient() {
		pair, err := h.authService.IssueTokens(ctx.UserContext(), user, req.scopes())
		if err != nil {
			return err
		}
		common.SetTokenCookies(ctx, h.cookieOpts, pair)
		return redirect(ctx, "/auth/me")
	}
	return h.issueCode(ctx, user, req)
}

func NewLoginHandler(authService AuthService, recorder *audit.Recorder, cookieOpts common.CookieOptions) *LoginHandler {
	return &LoginHandler{
		authService: authService,
		recorder:    recorder,
		cookieOpts:  cookieOpts,
	}
}
