package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/joho/godotenv"
	"github.com/khanghh/tokenauth/internal/audit"
	"github.com/khanghh/tokenauth/internal/auth"
	"github.com/khanghh/tokenauth/internal/common"
	"github.com/khanghh/tokenauth/internal/config"
	"github.com/khanghh/tokenauth/internal/database"
	"github.com/khanghh/tokenauth/internal/handlers"
	"github.com/khanghh/tokenauth/internal/middlewares"
	"github.com/khanghh/tokenauth/internal/render"
	"github.com/khanghh/tokenauth/internal/revocation"
	"github.com/khanghh/tokenauth/internal/store"
	"github.com/khanghh/tokenauth/internal/tokens"
	"github.com/khanghh/tokenauth/internal/users"
	"github.com/khanghh/tokenauth/params"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
	gitTag    string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "Load environment variables from a .env file",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	emailFlag = &cli.StringFlag{
		Name:     "email",
		Usage:    "User email address",
		Required: true,
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "tokenauth - JWT authentication server"
	app.Flags = []cli.Flag{
		configFileFlag,
		envFileFlag,
		debugFlag,
	}
	app.Before = loadEnvFile
	app.Commands = []*cli.Command{
		{
			Name:  "version",
			Usage: "Print version information",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:  "gen-secret",
			Usage: "Generate a random token signing secret",
			Action: func(ctx *cli.Context) error {
				secret, err := common.GenerateSecret(params.SecretKeyLength)
				if err != nil {
					return err
				}
				fmt.Println(secret)
				return nil
			},
		},
		{
			Name:  "users",
			Usage: "Manage user accounts",
			Subcommands: []*cli.Command{
				{
					Name:   "block",
					Usage:  "Block a user from signing in",
					Flags:  []cli.Flag{emailFlag},
					Action: setUserBlocked(true),
				},
				{
					Name:   "unblock",
					Usage:  "Allow a blocked user to sign in again",
					Flags:  []cli.Flag{emailFlag},
					Action: setUserBlocked(false),
				},
			},
		},
	}
	app.Action = run
}

func loadEnvFile(ctx *cli.Context) error {
	envFile := ctx.String(envFileFlag.Name)
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("could not load env file %s: %w", envFile, err)
	}
	return nil
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.DatabaseConfig, debug bool) *gorm.DB {
	db, err := database.Open(dbConfig, debug)
	if err != nil {
		slog.Error("Failed to connect to database", "driver", dbConfig.Driver, "error", err)
		os.Exit(1)
	}
	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func mustInitTokenCodec(tokensCfg config.TokensConfig) *tokens.Codec {
	codec, err := tokens.NewCodec(tokens.Config{
		SecretKey: []byte(tokensCfg.SecretKey),
		Algorithm: tokensCfg.Algorithm,
	})
	if err != nil {
		slog.Error("Invalid token configuration", "error", err)
		os.Exit(1)
	}
	return codec
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return nil, err
	}
	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))
	return config, nil
}

func setUserBlocked(blocked bool) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		config, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db := mustInitDatabase(config.Database, config.Debug)
		userService := users.NewUserService(users.NewUserRepository(db))

		email := users.NormalizeEmail(ctx.String(emailFlag.Name))
		if err := userService.SetBlocked(ctx.Context, email, blocked); err != nil {
			return fmt.Errorf("could not update %s: %w", email, err)
		}
		slog.Info("User updated", "email", email, "blocked", blocked)
		return nil
	}
}

func run(ctx *cli.Context) error {
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	globalVars := fiber.Map{
		"siteName": config.SiteName,
		"baseURL":  config.BaseURL,
	}
	if err := render.Initialize(globalVars, config.TemplateDir); err != nil {
		slog.Error("Failed to load templates", "error", err)
		return err
	}

	db := mustInitDatabase(config.Database, config.Debug)
	codec := mustInitTokenCodec(config.Tokens)

	serverCtx, term := context.WithCancel(ctx.Context)
	defer term()

	// revocation ledger
	var (
		ledger       revocation.Ledger
		redisStorage *redis.Storage
		retention    = config.Revocation.Retention
	)
	switch config.Revocation.Backend {
	case "redis":
		redisStorage = mustInitRedisStorage(config.Redis)
		ledger = revocation.NewStoreLedger(store.NewRedisStorage(redisStorage.Conn()), retention)
	case "memory":
		ledger = revocation.NewStoreLedger(store.NewMemoryStorage(), retention)
	default:
		dbLedger := revocation.NewDatabaseLedger(db, retention)
		if retention > 0 {
			go revocation.RunPurger(serverCtx, dbLedger, config.Revocation.PurgeInterval)
		}
		ledger = dbLedger
	}

	// services
	var (
		userService = users.NewUserService(users.NewUserRepository(db))
		recorder    = audit.NewRecorder(audit.NewAuditEventRepository(db))
		authService = auth.NewAuthService(auth.Config{
			AccessTokenExpiration:       config.Tokens.AccessTokenExpiration,
			RefreshTokenExpiration:      config.Tokens.RefreshTokenExpiration,
			AuthorizationCodeExpiration: config.Tokens.AuthorizationCodeExpiration,
			RotateRefreshTokens:         *config.Tokens.RotateRefreshTokens,
			RevokeAccessTokens:          config.Tokens.RevokeAccessTokens,
		}, codec, ledger, userService)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: len(config.AllowOrigins) > 0 && !containsWildcard(config.AllowOrigins),
	}))

	handlers.SetupRoutes(router, authService, recorder, common.CookieOptions{
		Secure:   config.Cookie.Secure,
		HTTPOnly: *config.Cookie.HttpOnly,
		Domain:   config.Cookie.Domain,
	})

	done := make(chan struct{})
	if redisStorage != nil {
		go common.StartHealthCheckServer(serverCtx, done, db, redisStorage.Conn())
	} else {
		go common.StartHealthCheckServer(serverCtx, done, db, nil)
	}
	defer func() {
		term()
		<-done
	}()

	slog.Info("Starting server", "addr", config.ListenAddr, "revocation", config.Revocation.Backend)
	return router.Listen(config.ListenAddr)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
