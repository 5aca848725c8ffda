// Copyright (c) 2026 Inkframe. All rights reserved.

// Command api is the entry point for the Inkframe identity API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkframe/inkframe/internal/api"
	"github.com/inkframe/inkframe/internal/platform/config"
	"github.com/inkframe/inkframe/internal/platform/constants"
	"github.com/inkframe/inkframe/internal/platform/migration"
	pgstore "github.com/inkframe/inkframe/internal/platform/postgres"
	redisstore "github.com/inkframe/inkframe/internal/platform/redis"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/users/account"
	"github.com/inkframe/inkframe/internal/users/auth"
	"github.com/inkframe/inkframe/internal/users/guard"
	"github.com/inkframe/inkframe/internal/users/rbac"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "inkframe"))
	slog.SetDefault(log)

	log.Info("[Inkframe] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "inkframe"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Service ──────────────────────────────────────────────────
	tokenService, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer)
	must(log, err, "initialize token service")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	userRepository := auth.NewUserRepository(pool)
	tokenRepository := auth.NewRefreshTokenRepository(pool)
	identityCache := auth.NewIdentityCache(rdb, auth.ProfileCacheTTL)
	loginLimiter := auth.NewLoginLimiter(rdb, cfg.LoginRateLimitAttempts,
		time.Duration(cfg.LoginRateLimitWindowS)*time.Second)

	authService := auth.NewService(userRepository, tokenRepository, identityCache, loginLimiter, tokenService)
	authHandler := auth.NewHandler(authService, auth.CookiePolicy{
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSiteMode(),
	})

	roleRepository := rbac.NewRoleRepository(pool)
	menuRepository := rbac.NewMenuRepository(pool)
	permissionRepository := rbac.NewPermissionRepository(pool)
	matrixCache := rbac.NewMatrixCache(rdb)

	rbacService := rbac.NewService(roleRepository, menuRepository, permissionRepository, matrixCache)
	rbacHandler := rbac.NewHandler(rbacService)

	accountRepository := account.NewAccountRepository(pool)
	accountService := account.NewService(accountRepository, tokenRepository, identityCache, log)
	accountHandler := account.NewHandler(accountService, rbacService)

	// Application-lifetime context: cancels background workers on shutdown.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 9. Background token sweeper ───────────────────────────────────────
	// Dead refresh token links are kept briefly for reuse forensics, then
	// purged so the table does not grow without bound.
	go sweepExpiredTokens(appCtx, tokenRepository, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Auth:       authHandler,
		RBAC:       rbacHandler,
		Account:    accountHandler,
		RouteGuard: guard.New(),
	}

	server := api.NewServer(appCtx, cfg, log, tokenService, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Stop background workers before draining requests.
	appCancel()

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// sweepExpiredTokens periodically purges refresh tokens that expired longer
// ago than the retention window. It runs until the context is cancelled.
func sweepExpiredTokens(ctx context.Context, tokens *auth.PostgresRefreshTokenRepository, log *slog.Logger) {
	ticker := time.NewTicker(auth.ExpiredTokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-auth.ExpiredTokenRetention)
			deleted, err := tokens.DeleteExpired(ctx, cutoff)
			if err != nil {
				log.Error("refresh_token_sweep_failed", slog.Any("error", err))
				continue
			}
			if deleted > 0 {
				log.Info("refresh_token_sweep_completed", slog.Int64("deleted", deleted))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
