package web

import (
	"context"

	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/model"
)

type AuthService interface {
	Authenticate(ctx context.Context, email string, password string) (*model.User, error)
	IssueTokens(ctx context.Context, user *model.User, scopes []string) (*auth.TokenPair, error)
	VerifyAccessToken(ctx context.Context, accessToken string) (*model.User, error)
	CreateAuthorizationCode(ctx context.Context, clientID string, redirectURI string, userID uint, scopes []string) (string, error)
}

var _ AuthService = (*auth.AuthService)(nil)
