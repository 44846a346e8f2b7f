// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/veyra/internal/iam/auth"
	"github.com/taibuivan/veyra/internal/iam/keyset"
	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/iam/token"
	"github.com/taibuivan/veyra/internal/platform/config"
	"github.com/taibuivan/veyra/internal/platform/constants"
	"github.com/taibuivan/veyra/internal/profile"
	"github.com/taibuivan/veyra/internal/trust"
)

// testServer wires NewServer with the full handler registry but no
// backing stores; only routes that never reach storage are exercised.
func testServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	redisServer := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	verifier := token.NewVerifier(nil, constants.AuthIssuer)
	revoker := revocation.NewIndex(client, 200*time.Millisecond, false, logger)
	kernel := trust.NewKernel(verifier, revoker, logger)

	handlers := Handlers{
		Liveness: func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		},
		Readiness: func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		},
		Auth:    auth.NewHandler(auth.NewService(auth.ServiceParams{Logger: logger}), auth.CookieSettings{}),
		JWKS:    keyset.NewJWKSHandler(keyset.NewService(nil, time.Hour, logger), time.Hour),
		Profile: profile.NewHandler(profile.NewService(nil, logger)),
	}

	cfg := &config.Config{ServerPort: "0", Environment: "development"}
	return NewServer(context.Background(), cfg, logger, kernel, handlers)
}

/*
TestNewServer_RouteProtection verifies the route topology: health probes
answer unauthenticated while the profile mount rejects requests that carry
no principal.
*/
func TestNewServer_RouteProtection(t *testing.T) {
	server := testServer(t)

	t.Run("health probes are public", func(t *testing.T) {
		for _, path := range []string{"/health", "/ready"} {
			recorder := httptest.NewRecorder()
			server.router.ServeHTTP(recorder, httptest.NewRequest("GET", path, nil))
			assert.Equal(t, http.StatusOK, recorder.Code, "path %q", path)
		}
	})

	t.Run("profile requires a principal", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		server.router.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/v1/profile/me", nil))
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("unknown route is 404, not 401", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		server.router.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/v1/nope", nil))
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}
