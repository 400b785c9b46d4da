package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/tokenauth/internal/config"
	"github.com/khanghh/tokenauth/internal/credentials"
	"github.com/khanghh/tokenauth/internal/database"
	"github.com/khanghh/tokenauth/internal/revocation"
	"github.com/khanghh/tokenauth/internal/store"
	"github.com/khanghh/tokenauth/internal/tokens"
	"github.com/khanghh/tokenauth/internal/users"
	"github.com/khanghh/tokenauth/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testEmail    = "user@example.com"
	testPassword = "Str0ngPwd"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db     *gorm.DB
	users  *users.UserService
	codec  *tokens.Codec
	ledger revocation.Ledger
	clock  *fakeClock
	svc    *AuthService
}

func defaultTestConfig() Config {
	return Config{
		AccessTokenExpiration:       15 * time.Minute,
		RefreshTokenExpiration:      7 * 24 * time.Hour,
		AuthorizationCodeExpiration: 10 * time.Minute,
		RotateRefreshTokens:         true,
	}
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Dsn:    filepath.Join(t.TempDir(), "auth.db"),
	}, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	codec, err := tokens.NewCodec(tokens.Config{
		SecretKey: []byte("test-secret-key"),
		Algorithm: "HS256",
	}, tokens.WithClock(clock.Now))
	require.NoError(t, err)

	userService := users.NewUserService(users.NewUserRepository(db))
	ledger := revocation.NewDatabaseLedger(db, 0)
	return &testEnv{
		db:     db,
		users:  userService,
		codec:  codec,
		ledger: ledger,
		clock:  clock,
		svc:    NewAuthService(cfg, codec, ledger, userService, WithClock(clock.Now)),
	}
}

func (e *testEnv) register(t *testing.T) *model.User {
	t.Helper()
	user, err := e.svc.Register(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return user
}

func TestRegisterLoginVerify(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()

	user := env.register(t)
	assert.Equal(t, testEmail, user.Email)
	assert.True(t, credentials.VerifyPassword(testPassword, user.Password))
	assert.NotEqual(t, testPassword, user.Password)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, []string{"read", "write"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.True(t, pair.AccessTokenExpires.Before(pair.RefreshTokenExpires))
	assert.Equal(t, []string{"read", "write"}, pair.Scopes)
	assert.Len(t, strings.Split(pair.AccessToken, "."), 3)

	verified, err := env.svc.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testEmail, verified.Email)
	assert.Equal(t, user.ID, verified.ID)

	claims, err := env.codec.Verify(pair.AccessToken, tokens.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, claims.Scopes)
	assert.Empty(t, claims.ID)

	refreshClaims, err := env.codec.Verify(pair.RefreshToken, tokens.KindRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshClaims.ID)
}

func TestLogin_RecordsLastLogin(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	user := env.register(t)

	_, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	reloaded, err := env.users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLogin)
	assert.True(t, env.clock.Now().Equal(*reloaded.LastLogin))
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.register(t)

	_, err := env.svc.Login(context.Background(), "User@Example.COM", testPassword, nil)
	assert.NoError(t, err)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	_, unknownErr := env.svc.Login(ctx, "nobody@example.com", testPassword, nil)
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)

	_, wrongErr := env.svc.Login(ctx, testEmail, "Wr0ngPassword", nil)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)

	// unknown email and wrong password must look the same to the caller
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLogin_BlockedUser(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	require.NoError(t, env.users.SetBlocked(ctx, testEmail, true))

	_, err = env.svc.Login(ctx, testEmail, testPassword, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.register(t)

	_, err := env.svc.Register(context.Background(), "USER@example.com", "An0therPwd")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRegister_InvalidEmail(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	for _, email := range []string{"", "not-an-email", "Name <user@example.com>", "user@"} {
		_, err := env.svc.Register(context.Background(), email, testPassword)
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
}

type fakeDirectory struct {
	mu        sync.Mutex
	lookups   int
	creates   int
	lookupErr error
	createErr error
}

func (d *fakeDirectory) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.lookupErr != nil {
		return nil, d.lookupErr
	}
	return nil, users.ErrUserNotFound
}

func (d *fakeDirectory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.lookupErr != nil {
		return nil, d.lookupErr
	}
	return nil, users.ErrUserNotFound
}

func (d *fakeDirectory) CreateUser(ctx context.Context, opts users.CreateUserOptions) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates++
	if d.createErr != nil {
		return nil, d.createErr
	}
	return &model.User{ID: 1, Email: opts.Email, Password: opts.PasswordHash, IsActive: true}, nil
}

func (d *fakeDirectory) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return nil
}

func newFakeService(t *testing.T, dir *fakeDirectory) *AuthService {
	t.Helper()
	codec, err := tokens.NewCodec(tokens.Config{SecretKey: []byte("secret"), Algorithm: "HS256"})
	require.NoError(t, err)
	storage := store.NewMemoryStorage()
	t.Cleanup(func() { storage.Close() })
	return NewAuthService(defaultTestConfig(), codec, revocation.NewStoreLedger(storage, 0), dir)
}

func TestRegister_WeakPasswordRejectedBeforePersistence(t *testing.T) {
	weak := []struct {
		password string
		err      error
	}{
		{"Sh0rt", credentials.ErrPasswordTooShort},
		{"NoDigitsHere", credentials.ErrPasswordNoDigit},
		{"alllower1", credentials.ErrPasswordNoUpper},
		{"ALLUPPER1", credentials.ErrPasswordNoLower},
	}
	for _, tc := range weak {
		t.Run(tc.password, func(t *testing.T) {
			dir := &fakeDirectory{}
			svc := newFakeService(t, dir)

			_, err := svc.Register(context.Background(), testEmail, tc.password)
			assert.ErrorIs(t, err, tc.err)
			assert.ErrorIs(t, err, ErrWeakPassword)
			assert.Zero(t, dir.lookups)
			assert.Zero(t, dir.creates)
		})
	}
}

func TestRegister_DuplicateFromStorage(t *testing.T) {
	dir := &fakeDirectory{createErr: users.ErrDuplicateEntry}
	svc := newFakeService(t, dir)

	_, err := svc.Register(context.Background(), testEmail, testPassword)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, dir.creates)
}

func TestDirectoryFaultsPropagate(t *testing.T) {
	fault := errors.New("connection refused")
	dir := &fakeDirectory{lookupErr: fault}
	svc := newFakeService(t, dir)
	ctx := context.Background()

	_, err := svc.Login(ctx, testEmail, testPassword, nil)
	assert.ErrorIs(t, err, fault)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, fault)

	token, err := svc.codec.Encode(&tokens.Claims{
		Kind:             tokens.KindAccess,
		RegisteredClaims: jwtClaims("1", time.Now().Add(time.Minute)),
	})
	require.NoError(t, err)
	_, err = svc.VerifyAccessToken(ctx, token)
	assert.ErrorIs(t, err, fault)
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	env.clock.Advance(15 * time.Minute)
	_, err = env.svc.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessToken_Tampered(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = env.svc.VerifyAccessToken(ctx, tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// an unverifiable token is reported invalid even once it is also stale
	env.clock.Advance(time.Hour)
	_, err = env.svc.VerifyAccessToken(ctx, tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyAccessToken_WrongKind(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	user := env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)
	_, err = env.svc.VerifyAccessToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	code, err := env.svc.CreateAuthorizationCode(ctx, "abc", "https://cb", user.ID, nil)
	require.NoError(t, err)
	_, err = env.svc.VerifyAccessToken(ctx, code)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessToken_DeletedUser(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	user := env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)
	require.NoError(t, env.db.Delete(&model.User{}, user.ID).Error)

	_, err = env.svc.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefresh_RotatesRefreshToken(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, []string{"read"})
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	refreshed, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, refreshed.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, refreshed.AccessToken)
	assert.Equal(t, []string{"read"}, refreshed.Scopes)
	assert.True(t, refreshed.AccessTokenExpires.After(pair.AccessTokenExpires))

	_, err = env.svc.VerifyAccessToken(ctx, refreshed.AccessToken)
	require.NoError(t, err)

	// the rotated-out refresh token cannot be replayed
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = env.svc.Refresh(ctx, refreshed.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_WithoutRotation(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.RotateRefreshTokens = false
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	refreshed, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, refreshed.RefreshToken)
	assert.True(t, pair.RefreshTokenExpires.Equal(refreshed.RefreshTokenExpires))

	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_Errors(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = env.svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	env.clock.Advance(7 * 24 * time.Hour)
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	user := env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, env.svc.Logout(ctx, pair.RefreshToken))

	claims, err := env.codec.Verify(pair.RefreshToken, tokens.KindRefresh)
	require.NoError(t, err)
	revoked, err := env.ledger.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// access tokens live until they expire
	verified, err := env.svc.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

func TestLogout_InvalidTokens(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.Logout(ctx, ""), ErrTokenInvalid)
	assert.ErrorIs(t, env.svc.Logout(ctx, "not.a.token"), ErrTokenInvalid)
	assert.ErrorIs(t, env.svc.Logout(ctx, pair.AccessToken), ErrTokenInvalid)

	env.clock.Advance(8 * 24 * time.Hour)
	assert.NoError(t, env.svc.Logout(ctx, pair.RefreshToken))
}

func TestRevokeAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, defaultTestConfig())
		env.register(t)
		pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
		require.NoError(t, err)

		require.NoError(t, env.svc.RevokeAccessToken(ctx, pair.AccessToken))
		_, err = env.svc.VerifyAccessToken(ctx, pair.AccessToken)
		assert.NoError(t, err)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.RevokeAccessTokens = true
		env := newTestEnv(t, cfg)
		env.register(t)
		pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
		require.NoError(t, err)

		claims, err := env.codec.Verify(pair.AccessToken, tokens.KindAccess)
		require.NoError(t, err)
		assert.NotEmpty(t, claims.ID)

		_, err = env.svc.VerifyAccessToken(ctx, pair.AccessToken)
		require.NoError(t, err)

		require.NoError(t, env.svc.RevokeAccessToken(ctx, pair.AccessToken))
		require.NoError(t, env.svc.RevokeAccessToken(ctx, pair.AccessToken))
		_, err = env.svc.VerifyAccessToken(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)

		assert.ErrorIs(t, env.svc.RevokeAccessToken(ctx, pair.RefreshToken), ErrTokenInvalid)
	})
}

func TestAuthorizationCode_Exchange(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	user := env.register(t)

	code, err := env.svc.CreateAuthorizationCode(ctx, "abc", "https://cb", user.ID, []string{"profile"})
	require.NoError(t, err)

	claims, err := env.codec.Verify(code, tokens.KindAuthorizationCode)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.ClientID)
	assert.Equal(t, "https://cb", claims.RedirectURI)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, env.clock.Now().Add(10*time.Minute).Equal(claims.Expiry()))

	pair, err := env.svc.ExchangeCodeForToken(ctx, code, "abc", "https://cb", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"profile"}, pair.Scopes)
	assert.True(t, pair.AccessTokenExpires.Before(pair.RefreshTokenExpires))

	verified, err := env.svc.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testEmail, verified.Email)

	// a code is redeemable once
	_, err = env.svc.ExchangeCodeForToken(ctx, code, "abc", "https://cb", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAuthorizationCode_BindingMismatch(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	user := env.register(t)

	code, err := env.svc.CreateAuthorizationCode(ctx, "abc", "https://cb", user.ID, nil)
	require.NoError(t, err)

	_, err = env.svc.ExchangeCodeForToken(ctx, code, "abc", "https://other", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = env.svc.ExchangeCodeForToken(ctx, code, "xyz", "https://cb", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = env.svc.ExchangeCodeForToken(ctx, code, "abc", "https://cb/", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	// failed attempts do not burn the code
	_, err = env.svc.ExchangeCodeForToken(ctx, code, "abc", "https://cb", "")
	assert.NoError(t, err)
}

func TestAuthorizationCode_Rejections(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	user := env.register(t)

	pair, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	_, err = env.svc.ExchangeCodeForToken(ctx, "garbage", "abc", "https://cb", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = env.svc.ExchangeCodeForToken(ctx, pair.RefreshToken, "abc", "https://cb", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	expiring, err := env.svc.CreateAuthorizationCode(ctx, "abc", "https://cb", user.ID, nil)
	require.NoError(t, err)
	env.clock.Advance(10 * time.Minute)
	_, err = env.svc.ExchangeCodeForToken(ctx, expiring, "abc", "https://cb", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	orphan, err := env.svc.CreateAuthorizationCode(ctx, "abc", "https://cb", user.ID, nil)
	require.NoError(t, err)
	require.NoError(t, env.db.Delete(&model.User{}, user.ID).Error)
	_, err = env.svc.ExchangeCodeForToken(ctx, orphan, "abc", "https://cb", "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = env.svc.CreateAuthorizationCode(ctx, "", "https://cb", user.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestConcurrentLoginsAreIndependent(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	ctx := context.Background()
	env.register(t)

	first, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)
	second, err := env.svc.Login(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	require.NoError(t, env.svc.Logout(ctx, first.RefreshToken))
	_, err = env.svc.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func jwtClaims(subject string, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}
