// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command identity is the entry point for the Veyra identity authority.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Bootstrap the signing keyset (fatal if no key can be ensured).
//  7. Wire domain services and HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
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

	"github.com/taibuivan/veyra/internal/api"
	"github.com/taibuivan/veyra/internal/iam/auth"
	"github.com/taibuivan/veyra/internal/iam/keyset"
	"github.com/taibuivan/veyra/internal/iam/password"
	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/iam/token"
	"github.com/taibuivan/veyra/internal/platform/config"
	"github.com/taibuivan/veyra/internal/platform/constants"
	"github.com/taibuivan/veyra/internal/platform/migration"
	pgstore "github.com/taibuivan/veyra/internal/platform/postgres"
	redisstore "github.com/taibuivan/veyra/internal/platform/redis"
	"github.com/taibuivan/veyra/internal/profile"
	"github.com/taibuivan/veyra/internal/trust"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "veyra-identity"))
	slog.SetDefault(log)

	log.Info("[Veyra] identity_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "veyra-identity"))
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

	// ── 6. Signing Keyset ─────────────────────────────────────────────────
	// The authority refuses to start without a usable signing key.
	keyService := keyset.NewService(keyset.NewKeyRepository(pool), cfg.KeyExpiry, log)
	must(log, keyService.Bootstrap(startupCtx), "bootstrap signing keyset")

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	hasher, err := password.NewHasher(cfg.PasswordPepper, password.Params{
		Iterations:  cfg.KDFIterations,
		MemoryKiB:   cfg.KDFMemoryKiB,
		Parallelism: cfg.KDFParallelism,
		SaltLength:  cfg.KDFSaltLength,
		HashLength:  cfg.KDFHashLength,
	})
	must(log, err, "initialize password hasher")

	minter := token.NewMinter(keyService, constants.AuthIssuer)
	verifier := token.NewVerifier(keyService, constants.AuthIssuer)
	revoker := revocation.NewIndex(rdb, cfg.RevocationTimeout, cfg.FailOpen(), log)

	store := auth.NewPostgresStore(pool)
	authService := auth.NewService(auth.ServiceParams{
		Repositories:    store.Repositories(),
		Tx:              store,
		Hasher:          hasher,
		Minter:          minter,
		Verifier:        verifier,
		Revoker:         revoker,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Logger:          log,
	})
	authHandler := auth.NewHandler(authService, auth.CookieSettings{
		Domain:       cfg.CookieDomain,
		Secure:       cfg.IsProduction(),
		SameSiteNone: cfg.CookieSameSiteNone,
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
	})

	profileService := profile.NewService(profile.NewPostgresRepository(pool), log)
	profileHandler := profile.NewHandler(profileService)

	// Published keys stay resolvable for at least one access token lifetime
	// after rotation so tokens minted under the old key still verify.
	jwksHandler := keyset.NewJWKSHandler(keyService, cfg.AccessTokenTTL)

	kernel := trust.NewKernel(verifier, revoker, log)

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		JWKS:      jwksHandler,
		Profile:   profileHandler,
	}

	// The server context outlives startup; it scopes background work such as
	// the rate limiter's cleanup loop.
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, kernel, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
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

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
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
