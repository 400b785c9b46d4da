package params

import "time"

const (
	ServerBodyLimit             = 1048576 // 1 MiB
	ServerIdleTimeout           = 30 * time.Second
	ServerReadTimeout           = 10 * time.Second
	ServerWriteTimeout          = 10 * time.Second
	RequestTimeout              = 5 * time.Second // deadline for directory and ledger calls made by a single request
	RevokedTokenKeyPrefix       = "r:"
	AccessTokenCookieName       = "access_token"
	RefreshTokenCookieName      = "refresh_token"
	TokenTypeBearer             = "bearer"
	AccessTokenExpiration       = 15 * time.Minute
	RefreshTokenExpiration      = 7 * 24 * time.Hour
	AuthorizationCodeExpiration = 10 * time.Minute
	RevocationPurgeInterval     = 1 * time.Hour
	PasswordMinLength           = 8
	PasswordMaxLength           = 72 // bcrypt ignores bytes past 72
	SecretKeyLength             = 64 // length of secrets printed by gen-secret
	HealthCheckServerAddr       = ":3001"
	APIVersion                  = "1.0"
)
