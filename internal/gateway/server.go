// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway

import (
	stdctx "context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/veyra/internal/platform/config"
	"github.com/taibuivan/veyra/internal/platform/constants"
	"github.com/taibuivan/veyra/internal/platform/middleware"
	"github.com/taibuivan/veyra/internal/platform/respond"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server] for the edge gateway.
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// NewServer assembles the gateway: infrastructure middleware, then the
// validation filter, then the upstream proxy.
//
// /health is answered locally; it reports the gateway process, not the
// upstream, which has its own probes.
func NewServer(context stdctx.Context, cfg *config.GatewayConfig, log *slog.Logger, filter *Filter, upstream *url.URL) *Server {
	router := chi.NewRouter()

	// # Middleware Chain
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(log))
	router.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	router.Use(middleware.RateLimit(context))
	router.Use(middleware.PanicRecovery(log))
	router.Use(middleware.CORS(cfg))
	router.Use(chimw.CleanPath)

	router.Get("/health", func(writer http.ResponseWriter, _ *http.Request) {
		respond.OK(writer, map[string]string{"status": "ok"})
	})

	// Everything else runs the validation pipeline and goes upstream.
	router.Handle("/*", filter.Handle(NewProxy(upstream, log)))

	return &Server{
		router: router,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.GatewayPort,
			Handler:           router,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the gateway.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("gateway starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the gateway, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := stdctx.WithTimeout(stdctx.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
