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
	"github.com/gofiber/storage/memory/v2"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/blogapi/internal/audit"
	"github.com/khanghh/blogapi/internal/common"
	"github.com/khanghh/blogapi/internal/config"
	"github.com/khanghh/blogapi/internal/handlers/api"
	"github.com/khanghh/blogapi/internal/joseutil"
	"github.com/khanghh/blogapi/internal/middlewares"
	"github.com/khanghh/blogapi/internal/oauth"
	"github.com/khanghh/blogapi/internal/scope"
	"github.com/khanghh/blogapi/internal/store"
	"github.com/khanghh/blogapi/internal/tokens"
	"github.com/khanghh/blogapi/internal/users"
	"github.com/khanghh/blogapi/model"
	"github.com/khanghh/blogapi/params"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
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
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "blogapi - Blog API server with OAuth2 style bearer tokens"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:   "purge-tokens",
			Usage:  "Delete expired access token records and exit",
			Action: purgeTokens,
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})
		if dbConfig.MaxIdleConns > 0 {
			resolver.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			resolver.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if dbConfig.ConnMaxLifetime > 0 {
			resolver.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
		}
		if err := db.Use(resolver); err != nil {
			slog.Error("Failed to register database replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *fiberredis.Storage {
	return fiberredis.New(fiberredis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

// mustInitCacheStorage returns the cache for short-lived records and, for the
// redis backend, the client used by the health check.
func mustInitCacheStorage(cfg *config.Config) (store.Storage, redis.UniversalClient) {
	switch cfg.Cache.Backend {
	case "redis":
		redisStorage := mustInitRedisStorage(cfg.Redis)
		return store.NewRedisStorage(redisStorage.Conn()), redisStorage.Conn()
	case "memory":
		return store.NewFiberStorage(memory.New()), nil
	}
	slog.Error("Unsupported cache backend", "backend", cfg.Cache.Backend)
	os.Exit(1)
	return nil, nil
}

func mustInitSigner(jwtCfg config.JWTConfig) *joseutil.Signer {
	var (
		signer *joseutil.Signer
		err    error
	)
	if jwtCfg.PrivateKeyFile != "" {
		var keyPEM []byte
		keyPEM, err = os.ReadFile(jwtCfg.PrivateKeyFile)
		if err == nil {
			signer, err = joseutil.NewRSASigner(keyPEM)
		}
	} else {
		signer, err = joseutil.NewHMACSigner(jwtCfg.SigningKey)
	}
	if err != nil {
		slog.Error("Failed to initialize token signer", "error", err)
		os.Exit(1)
	}
	slog.Info("Token signer initialized", "alg", signer.Algorithm())
	return signer
}

func mustInitEncrypter(jwtCfg config.JWTConfig) *joseutil.Encrypter {
	encrypter, err := joseutil.NewEncrypter(jwtCfg.EncryptionKey)
	if err != nil {
		slog.Error("Failed to initialize token encrypter", "error", err)
		os.Exit(1)
	}
	return encrypter
}

func initScopePolicy(scopeCfg config.ScopeConfig) *scope.Policy {
	policy := scope.NewDefaultPolicy()
	if len(scopeCfg.Catalog) > 0 {
		restricted := scopeCfg.Restricted
		if len(restricted) == 0 {
			restricted = scope.DefaultRestricted
		}
		policy = scope.NewPolicy(scopeCfg.Catalog, restricted)
	}
	slog.Debug("Scope policy loaded", "catalog", policy.Catalog())
	return policy
}

func initOAuthProvider(oauthCfg config.OAuthConfig) oauth.OAuthProvider {
	if !oauthCfg.Enabled() {
		return nil
	}
	return oauth.NewOIDCProvider(oauth.Config{
		ClientID:     oauthCfg.ClientID,
		ClientSecret: oauthCfg.ClientSecret,
		RedirectURL:  oauthCfg.RedirectURL,
		AuthURL:      oauthCfg.AuthURL,
		TokenURL:     oauthCfg.TokenURL,
		UserInfoURL:  oauthCfg.UserInfoURL,
		Scopes:       oauthCfg.Scopes,
	})
}

func newTokenService(cfg *config.Config, db *gorm.DB, signer *joseutil.Signer, encrypter *joseutil.Encrypter, userService *users.UserService, cacheStorage store.Storage, auditor *audit.Recorder) *tokens.TokenService {
	return tokens.NewTokenService(
		signer,
		encrypter,
		initScopePolicy(cfg.Scopes),
		userService,
		tokens.NewAccessTokenRepository(db),
		cacheStorage,
		auditor,
		tokens.Options{
			AccessTokenTTL: cfg.Token.AccessTokenTTL,
			Issuer:         cfg.JWT.Issuer,
		},
	)
}

func purgeTokens(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}
	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(config.MySQL)
	userService := users.NewUserService(users.NewUserRepository(db))
	tokenService := newTokenService(config, db, mustInitSigner(config.JWT), mustInitEncrypter(config.JWT), userService, nil, nil)

	deleted, err := tokenService.PurgeExpired(ctx.Context)
	if err != nil {
		slog.Error("Failed to purge expired access tokens", "error", err)
		return err
	}
	slog.Info("Purged expired access tokens", "count", deleted)
	return nil
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(config.MySQL)
	cacheStorage, rdb := mustInitCacheStorage(config)
	signer := mustInitSigner(config.JWT)
	encrypter := mustInitEncrypter(config.JWT)

	// repositories
	var (
		userRepo  = users.NewUserRepository(db)
		auditRepo = audit.NewAuditEventRepository(db)
	)

	// services
	var (
		auditor      = audit.NewRecorder(auditRepo)
		userService  = users.NewUserService(userRepo)
		tokenService = newTokenService(config, db, signer, encrypter, userService, cacheStorage, auditor)
	)

	// handlers
	var (
		oauthHandler = api.NewOAuthHandler(tokenService, userService, signer, initOAuthProvider(config.OAuth), cacheStorage, auditor)
		authHandler  = api.NewAuthHandler(tokenService, userService, encrypter)
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
		AllowOrigins: strings.Join(config.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	bearerAuth := middlewares.BearerAuth(middlewares.BearerAuthConfig{
		Verifier:     tokenService,
		Validator:    tokenService,
		BindClientIP: config.Token.BindClientIP,
	})
	api.SetupRoutes(router, oauthHandler, authHandler, bearerAuth)

	purgeCtx, stopPurge := context.WithCancel(ctx.Context)
	defer stopPurge()
	go tokenService.RunPurger(purgeCtx, config.Token.PurgeInterval)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, config.HealthCheckAddr, rdb, db)
	defer func() {
		term()
		<-done
	}()
	slog.Info("Starting server", "addr", config.ListenAddr, "version", params.VersionWithCommit(gitCommit, gitDate), "tag", gitTag)
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
