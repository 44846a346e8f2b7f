// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command gateway is the entry point for the Veyra edge gateway.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Prime the JWKS cache from the identity authority (fatal on failure).
//  4. Connect to Redis for the revocation index.
//  5. Wire the validation filter and upstream proxy.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/veyra/internal/gateway"
	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/iam/token"
	"github.com/taibuivan/veyra/internal/platform/config"
	"github.com/taibuivan/veyra/internal/platform/constants"
	"github.com/taibuivan/veyra/internal/platform/keycache"
	redisstore "github.com/taibuivan/veyra/internal/platform/redis"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", "veyra-gateway"))
	slog.SetDefault(log)

	log.Info("[Veyra] gateway_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.LoadGateway()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "veyra-gateway"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.GatewayPort),
		slog.String("upstream", cfg.UpstreamURL),
	)

	upstream, err := url.Parse(cfg.UpstreamURL)
	must(log, err, "parse upstream url")

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// The gateway context outlives startup; it scopes the JWKS refresh loop
	// and the rate limiter's cleanup loop.
	gatewayCtx, gatewayCancel := context.WithCancel(context.Background())
	defer gatewayCancel()

	// ── 3. JWKS Cache ─────────────────────────────────────────────────────
	// The gateway refuses to start without verification keys: admitting
	// traffic it cannot validate is worse than staying down.
	keys := keycache.New(keycache.Config{
		URL:             cfg.JWKSURL,
		RefreshInterval: cfg.JWKSRefreshInterval,
		MaxStale:        cfg.JWKSMaxStale,
		Logger:          log,
	})
	must(log, keys.Prime(startupCtx), "prime jwks cache")
	go keys.Run(gatewayCtx)

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Validation Filter ──────────────────────────────────────────────
	verifier := token.NewVerifier(keys, constants.AuthIssuer)
	revoker := revocation.NewIndex(rdb, cfg.RevocationTimeout, cfg.FailOpen(), log)
	public := gateway.NewMatcher(cfg.PublicPaths)
	filter := gateway.NewFilter(verifier, revoker, public, log)

	// ── 6. HTTP Server ────────────────────────────────────────────────────
	server := gateway.NewServer(gatewayCtx, cfg, log, filter, upstream)

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down gateway", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("gateway stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
