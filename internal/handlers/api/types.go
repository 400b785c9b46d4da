package api

import (
	"context"

	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/model"
)

type AuthService interface {
	Register(ctx context.Context, email string, password string) (*model.User, error)
	Login(ctx context.Context, email string, password string, scopes []string) (*auth.TokenPair, error)
	VerifyAccessToken(ctx context.Context, accessToken string) (*model.User, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	RevokeAccessToken(ctx context.Context, accessToken string) error
	ExchangeCodeForToken(ctx context.Context, code string, clientID string, redirectURI string, clientSecret string) (*auth.TokenPair, error)
}

var _ AuthService = (*auth.AuthService)(nil)
