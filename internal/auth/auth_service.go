package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/khanghh/tokenauth/internal/credentials"
	"github.com/khanghh/tokenauth/internal/revocation"
	"github.com/khanghh/tokenauth/internal/tokens"
	"github.com/khanghh/tokenauth/internal/users"
	"github.com/khanghh/tokenauth/model"
	"github.com/khanghh/tokenauth/params"
	"github.com/spf13/cast"
)

// UserDirectory is the user storage the auth service depends on. Lookups
// return users.ErrUserNotFound for unknown users and CreateUser returns
// users.ErrDuplicateEntry when the email is taken.
type UserDirectory interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, opts users.CreateUserOptions) (*model.User, error)
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
}

type Config struct {
	AccessTokenExpiration       time.Duration
	RefreshTokenExpiration      time.Duration
	AuthorizationCodeExpiration time.Duration
	RotateRefreshTokens         bool
	RevokeAccessTokens          bool
}

type TokenPair struct {
	UserID              uint
	AccessToken         string
	RefreshToken        string
	TokenType           string
	AccessTokenExpires  time.Time
	RefreshTokenExpires time.Time
	Scopes              []string
}

type Option func(*AuthService)

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		s.now = now
	}
}

// AuthService issues, verifies, rotates and revokes tokens on behalf of users
// held in the directory.
type AuthService struct {
	config    Config
	codec     *tokens.Codec
	ledger    revocation.Ledger
	directory UserDirectory
	now       func() time.Time
}

var (
	dummyHash     string
	dummyHashOnce sync.Once
)

// burnPasswordCheck spends the same time as a real password comparison so
// unknown emails cannot be told apart by latency.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = credentials.HashPassword("dummy-password-for-timing")
	})
	credentials.VerifyPassword(password, dummyHash)
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, email string, password string) (*model.User, error) {
	email = users.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := credentials.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	existing, err := s.directory.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	passwordHash, err := credentials.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.directory.CreateUser(ctx, users.CreateUserOptions{
		Email:        email,
		PasswordHash: passwordHash,
	})
	if errors.Is(err, users.ErrDuplicateEntry) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) lookupUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.directory.GetUserByEmail(ctx, email)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *AuthService) lookupUserByID(ctx context.Context, subject string) (*model.User, error) {
	userID, err := cast.ToUintE(subject)
	if err != nil || userID == 0 {
		return nil, ErrNotFound
	}
	user, err := s.directory.GetUserByID(ctx, userID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.IsBlocked() {
		return nil, ErrNotFound
	}
	return user, nil
}

// Authenticate checks an email and password pair. Unknown emails, wrong
// passwords and blocked users all yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email string, password string) (*model.User, error) {
	user, err := s.lookupUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		burnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !credentials.VerifyPassword(password, user.Password) || user.IsBlocked() {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string, scopes []string) (*TokenPair, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.IssueTokens(ctx, user, scopes)
}

// IssueTokens records a login for an already authenticated user and issues
// a fresh token pair.
func (s *AuthService) IssueTokens(ctx context.Context, user *model.User, scopes []string) (*TokenPair, error) {
	if err := s.directory.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		slog.Warn("failed to update last login", "userID", user.ID, "error", err)
	}
	return s.issueTokenPair(user.ID, scopes)
}

func (s *AuthService) issueTokenPair(userID uint, scopes []string) (*TokenPair, error) {
	now := s.now()
	subject := cast.ToString(userID)
	scopes = append([]string(nil), scopes...)

	access := &tokens.Claims{
		Kind:   tokens.KindAccess,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenExpiration)),
		},
	}
	if s.config.RevokeAccessTokens {
		access.ID = uuid.NewString()
	}
	accessToken, err := s.codec.Encode(access)
	if err != nil {
		return nil, err
	}

	pair := &TokenPair{
		UserID:             userID,
		AccessToken:        accessToken,
		TokenType:          params.TokenTypeBearer,
		AccessTokenExpires: access.Expiry(),
		Scopes:             scopes,
	}

	refresh := &tokens.Claims{
		Kind:   tokens.KindRefresh,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTokenExpiration)),
		},
	}
	refreshToken, err := s.codec.Encode(refresh)
	if err != nil {
		return nil, err
	}
	pair.RefreshToken = refreshToken
	pair.RefreshTokenExpires = refresh.Expiry()
	return pair, nil
}

func tokenError(err error) error {
	if errors.Is(err, tokens.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

func (s *AuthService) isRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := s.ledger.IsRevoked(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

// VerifyAccessToken resolves an access token to its user. Any token or user
// problem yields ErrTokenInvalid or ErrTokenExpired; storage faults are
// returned as is.
func (s *AuthService) VerifyAccessToken(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.codec.Verify(accessToken, tokens.KindAccess)
	if err != nil {
		return nil, tokenError(err)
	}
	if s.config.RevokeAccessTokens && claims.ID != "" {
		revoked, err := s.isRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenInvalid
		}
	}
	user, err := s.lookupUserByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	return user, err
}

// Refresh exchanges a refresh token for a new token pair with the same
// scopes. With rotation enabled the presented refresh token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, tokens.KindRefresh)
	if err != nil {
		return nil, tokenError(err)
	}
	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenInvalid
	}
	user, err := s.lookupUserByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if !s.config.RotateRefreshTokens {
		pair, err := s.issueTokenPair(user.ID, claims.Scopes)
		if err != nil {
			return nil, err
		}
		pair.RefreshToken = refreshToken
		pair.RefreshTokenExpires = claims.Expiry()
		return pair, nil
	}
	if err := s.ledger.Revoke(ctx, claims.ID, string(tokens.KindRefresh), claims.Expiry()); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issueTokenPair(user.ID, claims.Scopes)
}

// Logout revokes a refresh token. Revoking twice is not an error and an
// expired token needs no revocation.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Verify(refreshToken, tokens.KindRefresh)
	if errors.Is(err, tokens.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return ErrTokenInvalid
	}
	if err := s.ledger.Revoke(ctx, claims.ID, string(tokens.KindRefresh), claims.Expiry()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAccessToken records an access token in the ledger. It does nothing
// unless access token revocation is enabled.
func (s *AuthService) RevokeAccessToken(ctx context.Context, accessToken string) error {
	if !s.config.RevokeAccessTokens {
		return nil
	}
	claims, err := s.codec.Verify(accessToken, tokens.KindAccess)
	if errors.Is(err, tokens.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return ErrTokenInvalid
	}
	if claims.ID == "" {
		return nil
	}
	if err := s.ledger.Revoke(ctx, claims.ID, string(tokens.KindAccess), claims.Expiry()); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

// CreateAuthorizationCode issues a short-lived code bound to the client and
// redirect URI it was requested for.
func (s *AuthService) CreateAuthorizationCode(ctx context.Context, clientID string, redirectURI string, userID uint, scopes []string) (string, error) {
	if clientID == "" || redirectURI == "" || userID == 0 {
		return "", ErrInvalidRequest
	}
	claims := &tokens.Claims{
		Kind:        tokens.KindAuthorizationCode,
		Scopes:      append([]string(nil), scopes...),
		ClientID:    clientID,
		RedirectURI: redirectURI,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cast.ToString(userID),
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.config.AuthorizationCodeExpiration)),
		},
	}
	return s.codec.Encode(claims)
}

// ExchangeCodeForToken redeems an authorization code for a token pair. The
// client id and redirect URI must match the ones bound to the code exactly.
// A code can be redeemed once. The client secret is not checked.
func (s *AuthService) ExchangeCodeForToken(ctx context.Context, code string, clientID string, redirectURI string, clientSecret string) (*TokenPair, error) {
	claims, err := s.codec.Verify(code, tokens.KindAuthorizationCode)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	if claims.ClientID != clientID || claims.RedirectURI != redirectURI {
		return nil, ErrInvalidGrant
	}
	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidGrant
	}
	user, err := s.lookupUserByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Revoke(ctx, claims.ID, string(tokens.KindAuthorizationCode), claims.Expiry()); err != nil {
		return nil, fmt.Errorf("consume authorization code: %w", err)
	}
	return s.IssueTokens(ctx, user, claims.Scopes)
}

func NewAuthService(config Config, codec *tokens.Codec, ledger revocation.Ledger, directory UserDirectory, opts ...Option) *AuthService {
	s := &AuthService{
		config:    config,
		codec:     codec,
		ledger:    ledger,
		directory: directory,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
