package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/tokenauth/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr        = ":3000"
	DefaultDatabaseDriver    = "sqlite"
	DefaultDatabaseDsn       = "tokenauth.db"
	DefaultSigningAlgorithm  = "HS256"
	DefaultRevocationBackend = RevocationBackendDatabase
)

const (
	RevocationBackendDatabase = "database"
	RevocationBackendRedis    = "redis"
	RevocationBackendMemory   = "memory"
)

var (
	ErrMissingSecretKey      = errors.New("tokens.secretKey is required")
	ErrUnsupportedAlgorithm  = errors.New("tokens.algorithm must be an HMAC algorithm")
	ErrInvalidTokenLifetimes = errors.New("access token lifetime must be shorter than refresh token lifetime")
	ErrUnsupportedDatabase   = errors.New("unsupported database driver")
	ErrUnsupportedRevocation = errors.New("unsupported revocation backend")
	ErrNegativeRetention     = errors.New("revocation.retention must not be negative")
	ErrRedisURLRequired      = errors.New("redis.url is required for the redis revocation backend")
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Dsn             string        `mapstructure:"dsn"`
	Replicas        []string      `mapstructure:"replicas"`
	TablePrefix     string        `mapstructure:"tablePrefix"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type TokensConfig struct {
	SecretKey                   string        `mapstructure:"secretKey"`
	Algorithm                   string        `mapstructure:"algorithm"`
	AccessTokenExpiration       time.Duration `mapstructure:"accessTokenExpiration"`
	RefreshTokenExpiration      time.Duration `mapstructure:"refreshTokenExpiration"`
	AuthorizationCodeExpiration time.Duration `mapstructure:"authorizationCodeExpiration"`
	RotateRefreshTokens         *bool         `mapstructure:"rotateRefreshTokens"`
	RevokeAccessTokens          bool          `mapstructure:"revokeAccessTokens"`
}

// RevocationConfig selects where revoked token identifiers live and how long
// they are kept. A zero retention keeps entries forever.
type RevocationConfig struct {
	Backend       string        `mapstructure:"backend"`
	Retention     time.Duration `mapstructure:"retention"`
	PurgeInterval time.Duration `mapstructure:"purgeInterval"`
}

type CookieConfig struct {
	Secure   bool   `mapstructure:"secure"`
	HttpOnly *bool  `mapstructure:"httpOnly"`
	Domain   string `mapstructure:"domain"`
}

type Config struct {
	Debug        bool             `mapstructure:"debug"`
	SiteName     string           `mapstructure:"siteName"`
	BaseURL      string           `mapstructure:"baseURL"`
	ListenAddr   string           `mapstructure:"listenAddr"`
	TemplateDir  string           `mapstructure:"templateDir"`
	AllowOrigins []string         `mapstructure:"allowOrigins"`
	Database     DatabaseConfig   `mapstructure:"database"`
	Redis        RedisConfig      `mapstructure:"redis"`
	Tokens       TokensConfig     `mapstructure:"tokens"`
	Revocation   RevocationConfig `mapstructure:"revocation"`
	Cookie       CookieConfig     `mapstructure:"cookie"`
}

func boolPtr(v bool) *bool {
	return &v
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.SiteName == "" {
		c.SiteName = "tokenauth"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Database.Dsn == "" && c.Database.Driver == DefaultDatabaseDriver {
		c.Database.Dsn = DefaultDatabaseDsn
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDatabase, c.Database.Driver)
	}

	if c.Tokens.SecretKey == "" {
		return ErrMissingSecretKey
	}
	if c.Tokens.Algorithm == "" {
		c.Tokens.Algorithm = DefaultSigningAlgorithm
	}
	if _, ok := jwt.GetSigningMethod(c.Tokens.Algorithm).(*jwt.SigningMethodHMAC); !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, c.Tokens.Algorithm)
	}
	if c.Tokens.AccessTokenExpiration <= 0 {
		c.Tokens.AccessTokenExpiration = params.AccessTokenExpiration
	}
	if c.Tokens.RefreshTokenExpiration <= 0 {
		c.Tokens.RefreshTokenExpiration = params.RefreshTokenExpiration
	}
	if c.Tokens.AuthorizationCodeExpiration <= 0 {
		c.Tokens.AuthorizationCodeExpiration = params.AuthorizationCodeExpiration
	}
	if c.Tokens.AccessTokenExpiration >= c.Tokens.RefreshTokenExpiration {
		return ErrInvalidTokenLifetimes
	}
	if c.Tokens.RotateRefreshTokens == nil {
		c.Tokens.RotateRefreshTokens = boolPtr(true)
	}

	if c.Revocation.Backend == "" {
		c.Revocation.Backend = DefaultRevocationBackend
	}
	switch c.Revocation.Backend {
	case RevocationBackendDatabase, RevocationBackendMemory:
	case RevocationBackendRedis:
		if c.Redis.URL == "" {
			return ErrRedisURLRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRevocation, c.Revocation.Backend)
	}
	if c.Revocation.Retention < 0 {
		return ErrNegativeRetention
	}
	if c.Revocation.PurgeInterval <= 0 {
		c.Revocation.PurgeInterval = params.RevocationPurgeInterval
	}

	if c.Cookie.HttpOnly == nil {
		c.Cookie.HttpOnly = boolPtr(true)
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to keys viper already knows about
	v.BindEnv("tokens.secretKey", "TOKENS_SECRETKEY", "SECRET_KEY")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("redis.url", "REDIS_URL")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
