package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/tokenauth/internal/audit"
	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/internal/common"
	"github.com/khanghh/tokenauth/internal/middlewares"
	"github.com/khanghh/tokenauth/model"
	"github.com/khanghh/tokenauth/params"
	"github.com/spf13/cast"
)

const (
	oauthErrInvalidRequest       = "invalid_request"
	oauthErrInvalidGrant         = "invalid_grant"
	oauthErrUnsupportedGrantType = "unsupported_grant_type"
)

const (
	grantTypePassword          = "password"
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
)

type AuthHandler struct {
	authService AuthService
	recorder    *audit.Recorder
	cookieOpts  common.CookieOptions
	now         func() time.Time
}

func clientInfo(ctx *fiber.Ctx) audit.ClientInfo {
	return audit.ClientInfo{
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

func newUserInfoResponse(user *model.User) UserInfoResponse {
	return UserInfoResponse{
		UserID:      cast.ToString(user.ID),
		Email:       user.Email,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		LastLogin:   user.LastLogin,
		CreatedAt:   user.CreatedAt,
	}
}

func oauthError(ctx *fiber.Ctx, status int, code string, description string) error {
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.Status(status).JSON(OAuthErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

func (h *AuthHandler) PostRegister(ctx *fiber.Ctx) error {
	var req registerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	if err := validate.Struct(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid registration request", validationDetails(err)...),
		)
	}

	user, err := h.authService.Register(ctx.UserContext(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, err.Error()),
		)
	case errors.Is(err, auth.ErrAlreadyExists):
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, err.Error(), APIErrorDetail{
				Domain:  "user",
				Reason:  "duplicate",
				Message: "An account with this email already exists",
			}),
		)
	case err != nil:
		return err
	}

	h.recorder.RecordRegister(ctx.UserContext(), clientInfo(ctx), user.ID, user.Email)
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newUserInfoResponse(user)))
}

func (h *AuthHandler) sendTokenPair(ctx *fiber.Ctx, pair *auth.TokenPair) error {
	common.SetTokenCookies(ctx, h.cookieOpts, pair)
	now := h.now()
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken:           pair.AccessToken,
		TokenType:             pair.TokenType,
		ExpiresIn:             int64(pair.AccessTokenExpires.Sub(now).Seconds()),
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresIn: int64(pair.RefreshTokenExpires.Sub(now).Seconds()),
		Scope:                 strings.Join(pair.Scopes, " "),
	})
}

func (h *AuthHandler) handlePasswordGrant(ctx *fiber.Ctx, req tokenRequest) error {
	grant := passwordGrant{Username: req.Username, Password: req.Password}
	if err := validate.Struct(grant); err != nil {
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidRequest, firstValidationMessage(err))
	}

	pair, err := h.authService.Login(ctx.UserContext(), grant.Username, grant.Password, strings.Fields(req.Scope))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.recorder.RecordLogin(ctx.UserContext(), audit.LoginRecord{
			ClientInfo: clientInfo(ctx),
			Email:      grant.Username,
			GrantType:  grantTypePassword,
			Reason:     err.Error(),
		})
		ctx.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="tokenauth"`)
		return oauthError(ctx, fiber.StatusUnauthorized, oauthErrInvalidGrant, "invalid email or password")
	}
	if err != nil {
		return err
	}

	h.recorder.RecordLogin(ctx.UserContext(), audit.LoginRecord{
		ClientInfo: clientInfo(ctx),
		UserID:     pair.UserID,
		Email:      grant.Username,
		GrantType:  grantTypePassword,
		Success:    true,
	})
	return h.sendTokenPair(ctx, pair)
}

func (h *AuthHandler) handleAuthorizationCodeGrant(ctx *fiber.Ctx, req tokenRequest) error {
	grant := authorizationCodeGrant{Code: req.Code, ClientID: req.ClientID, RedirectURI: req.RedirectURI}
	if err := validate.Struct(grant); err != nil {
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidRequest, firstValidationMessage(err))
	}

	record := audit.CodeRecord{
		ClientInfo:  clientInfo(ctx),
		ClientID:    grant.ClientID,
		RedirectURI: grant.RedirectURI,
	}
	pair, err := h.authService.ExchangeCodeForToken(ctx.UserContext(), grant.Code, grant.ClientID, grant.RedirectURI, req.ClientSecret)
	if errors.Is(err, auth.ErrInvalidGrant) {
		record.Reason = err.Error()
		h.recorder.RecordCodeExchange(ctx.UserContext(), record)
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidGrant, "authorization code is invalid, expired or was issued to another client")
	}
	if err != nil {
		return err
	}

	record.UserID = pair.UserID
	record.Success = true
	h.recorder.RecordCodeExchange(ctx.UserContext(), record)
	return h.sendTokenPair(ctx, pair)
}

func (h *AuthHandler) handleRefreshTokenGrant(ctx *fiber.Ctx, req tokenRequest) error {
	grant := refreshTokenGrant{RefreshToken: req.RefreshToken}
	if grant.RefreshToken == "" {
		grant.RefreshToken = ctx.Cookies(params.RefreshTokenCookieName)
	}
	if err := validate.Struct(grant); err != nil {
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidRequest, firstValidationMessage(err))
	}

	pair, err := h.authService.Refresh(ctx.UserContext(), grant.RefreshToken)
	if errors.Is(err, auth.ErrTokenExpired) {
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidGrant, "refresh token expired")
	}
	if errors.Is(err, auth.ErrTokenInvalid) {
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidGrant, "refresh token is invalid or revoked")
	}
	if err != nil {
		return err
	}

	h.recorder.RecordRefresh(ctx.UserContext(), clientInfo(ctx), pair.UserID)
	return h.sendTokenPair(ctx, pair)
}

// PostToken is the OAuth 2.0 token endpoint. It accepts the password,
// authorization_code and refresh_token grants.
func (h *AuthHandler) PostToken(ctx *fiber.Ctx) error {
	var req tokenRequest
	if err := ctx.BodyParser(&req); err != nil {
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidRequest, "malformed request body")
	}

	switch req.GrantType {
	case grantTypePassword:
		return h.handlePasswordGrant(ctx, req)
	case grantTypeAuthorizationCode:
		return h.handleAuthorizationCodeGrant(ctx, req)
	case grantTypeRefreshToken:
		return h.handleRefreshTokenGrant(ctx, req)
	case "":
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrInvalidRequest, "grant_type is required")
	default:
		return oauthError(ctx, fiber.StatusBadRequest, oauthErrUnsupportedGrantType, auth.ErrUnsupportedGrantType.Error())
	}
}

// PostLogout revokes the presented refresh token and clears the token cookies.
// It succeeds even when no token or an unusable token is presented.
func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	refreshToken := ctx.FormValue("refresh_token")
	if refreshToken == "" {
		refreshToken = ctx.Cookies(params.RefreshTokenCookieName)
	}
	if refreshToken == "" {
		refreshToken = middlewares.BearerToken(ctx)
	}
	accessToken := ctx.Cookies(params.AccessTokenCookieName)

	var userID uint
	if accessToken != "" {
		if user, err := h.authService.VerifyAccessToken(ctx.UserContext(), accessToken); err == nil {
			userID = user.ID
		}
		if err := h.authService.RevokeAccessToken(ctx.UserContext(), accessToken); err != nil && !errors.Is(err, auth.ErrTokenInvalid) {
			return err
		}
	}
	if refreshToken != "" {
		if err := h.authService.Logout(ctx.UserContext(), refreshToken); err != nil && !errors.Is(err, auth.ErrTokenInvalid) {
			return err
		}
	}

	common.ClearTokenCookies(ctx, h.cookieOpts)
	h.recorder.RecordLogout(ctx.UserContext(), clientInfo(ctx), userID)
	return ctx.Status(fiber.StatusOK).JSON(NewDataResponse(fiber.Map{"loggedOut": true}))
}

func (h *AuthHandler) GetMe(ctx *fiber.Ctx) error {
	user := middlewares.GetUser(ctx)
	if user == nil {
		return fiber.ErrUnauthorized
	}
	return ctx.Status(fiber.StatusOK).JSON(NewDataResponse(newUserInfoResponse(user)))
}

func NewAuthHandler(authService AuthService, recorder *audit.Recorder, cookieOpts common.CookieOptions) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		recorder:    recorder,
		cookieOpts:  cookieOpts,
		now:         time.Now,
	}
}
