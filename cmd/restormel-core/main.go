package main

// @title           Restormel Core API
// @version         1.0
// @description     Account service for Restormel. Handles login, sessions, user management and self-service password changes.

// @contact.name   Restormel OSS
// @contact.url    https://github.com/custodia-labs/restormel-core/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/custodia-labs/restormel-core/docs"
	"github.com/custodia-labs/restormel-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/restormel-core/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/restormel-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/restormel-core/internal/adapters/driving/http"
	"github.com/custodia-labs/restormel-core/internal/config"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
	"github.com/custodia-labs/restormel-core/internal/core/services"
	"github.com/custodia-labs/restormel-core/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("restormel-core stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("restormel-core starting", "version", version, "env", cfg.Env)

	// Cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ===== Initialize PostgreSQL =====
	logger.Info("connecting to PostgreSQL")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Initialize schema (idempotent)
	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	logger.Info("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		logger.Info("connecting to Redis")
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected")
	}

	// ===== Driven adapters (infrastructure) =====
	hasher, err := auth.NewHasher(cfg.HasherConfig())
	if err != nil {
		return fmt.Errorf("configure password hasher: %w", err)
	}
	authAdapter := auth.NewAdapterWithHasher(cfg.Auth.JWTSecret, hasher)
	logger.Info("password hasher configured", "scheme", hasher.Scheme())

	userStore := postgres.NewUserStore(db)
	credentialStore := postgres.NewCredentialStore(db)

	// ===== Sessions and credential lock (Redis if available, otherwise PostgreSQL) =====
	var (
		sessionStore driven.SessionStore
		credLock     driven.DistributedLock
		redisPinger  http.Pinger
	)
	if redisClient != nil {
		sessionStore = redisadapter.NewSessionStore(redisClient)
		lock := redisadapter.NewLock(redisClient)
		credLock = lock
		redisPinger = lock
		logger.Info("using Redis session store and credential lock")
	} else {
		pgSessions := postgres.NewSessionStore(db)
		sessionStore = pgSessions
		go purgeExpiredSessions(ctx, pgSessions, cfg.Database.SessionCleanupInterval, logger)
		logger.Info("using PostgreSQL session store")
	}

	// ===== Services (core business logic) =====
	authService := services.NewAuthService(userStore, sessionStore, authAdapter, cfg.Auth.TokenTTL)
	userService := services.NewUserService(userStore, authAdapter, cfg.Auth.TeamID)
	credentialService := services.NewCredentialService(services.CredentialServiceConfig{
		Sessions: http.SessionProvider,
		Store:    credentialStore,
		Hasher:   authAdapter,
		Lock:     credLock,
		LockTTL:  cfg.Auth.LockTTL,
		Logger:   logger,
	})

	// ===== HTTP server =====
	serverCfg := http.Config{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		Version:         version,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          logger,
	}
	server := http.NewServer(serverCfg, authService, userService, credentialService, db, redisPinger)

	return server.Start(ctx)
}

// purgeExpiredSessions deletes expired PostgreSQL sessions until ctx is done
func purgeExpiredSessions(ctx context.Context, store *postgres.SessionStore, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}
