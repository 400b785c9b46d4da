package auth

import (
	"errors"

	"github.com/khanghh/tokenauth/internal/credentials"
	"github.com/khanghh/tokenauth/internal/tokens"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAlreadyExists        = errors.New("email already registered")
	ErrNotFound             = errors.New("user not found")
	ErrTokenInvalid         = tokens.ErrTokenInvalid
	ErrTokenExpired         = tokens.ErrTokenExpired
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWeakPassword         = credentials.ErrWeakPassword
	ErrInvalidEmail         = errors.New("invalid email address")
)
