// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keycache_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/keycache"
)

// jwksServer serves a swappable JWKS document.
type jwksServer struct {
	mu       sync.Mutex
	document []byte
	server   *httptest.Server
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	source := &jwksServer{}
	source.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		source.mu.Lock()
		defer source.mu.Unlock()
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write(source.document)
	}))
	t.Cleanup(source.server.Close)
	return source
}

// publish replaces the served document with a set holding the given kids.
func (source *jwksServer) publish(t *testing.T, keys map[string]*rsa.PublicKey) {
	t.Helper()

	set := jwk.NewSet()
	for kid, public := range keys {
		entry, err := jwk.Import(public)
		require.NoError(t, err)
		require.NoError(t, entry.Set(jwk.KeyIDKey, kid))
		require.NoError(t, entry.Set(jwk.AlgorithmKey, "RS256"))
		require.NoError(t, set.AddKey(entry))
	}

	document, err := json.Marshal(set)
	require.NoError(t, err)

	source.mu.Lock()
	source.document = document
	source.mu.Unlock()
}

func testPublicKey(t *testing.T) *rsa.PublicKey {
	t.Helper()
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &private.PublicKey
}

func newCache(source *jwksServer, maxStale time.Duration) *keycache.Cache {
	return keycache.New(keycache.Config{
		URL:             source.server.URL,
		RefreshInterval: time.Minute,
		MaxStale:        maxStale,
		Logger:          slog.New(slog.DiscardHandler),
	})
}

/*
TestCache_ResolveKnownKid verifies the happy path: prime, then resolve a
published kid to a usable RSA key.
*/
func TestCache_ResolveKnownKid(t *testing.T) {
	source := newJWKSServer(t)
	published := testPublicKey(t)
	source.publish(t, map[string]*rsa.PublicKey{"key-1": published})

	cache := newCache(source, 24*time.Hour)
	require.NoError(t, cache.Prime(context.Background()))

	resolved, err := cache.ResolvePublicKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, published.N, resolved.N)
	assert.Equal(t, published.E, resolved.E)
}

/*
TestCache_RotationTriggersForcedRefresh verifies that a kid published after
the last scheduled fetch resolves via an on-demand refresh.
*/
func TestCache_RotationTriggersForcedRefresh(t *testing.T) {
	source := newJWKSServer(t)
	oldKey := testPublicKey(t)
	source.publish(t, map[string]*rsa.PublicKey{"key-old": oldKey})

	cache := newCache(source, 24*time.Hour)
	require.NoError(t, cache.Prime(context.Background()))

	// The authority rotates.
	newKey := testPublicKey(t)
	source.publish(t, map[string]*rsa.PublicKey{"key-old": oldKey, "key-new": newKey})

	resolved, err := cache.ResolvePublicKey(context.Background(), "key-new")
	require.NoError(t, err)
	assert.Equal(t, newKey.N, resolved.N)

	// The previous key remains resolvable after the refresh.
	_, err = cache.ResolvePublicKey(context.Background(), "key-old")
	assert.NoError(t, err)
}

/*
TestCache_UnknownKid verifies that a kid absent even after a forced refresh
is an error, not a panic or a stale hit.
*/
func TestCache_UnknownKid(t *testing.T) {
	source := newJWKSServer(t)
	source.publish(t, map[string]*rsa.PublicKey{"key-1": testPublicKey(t)})

	cache := newCache(source, 24*time.Hour)
	require.NoError(t, cache.Prime(context.Background()))

	_, err := cache.ResolvePublicKey(context.Background(), "key-forged")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key-forged")
}

/*
TestCache_ServesStaleWithinWindow verifies that an unreachable authority
does not take validators down while the document is inside max-stale.
*/
func TestCache_ServesStaleWithinWindow(t *testing.T) {
	source := newJWKSServer(t)
	source.publish(t, map[string]*rsa.PublicKey{"key-1": testPublicKey(t)})

	cache := newCache(source, 24*time.Hour)
	require.NoError(t, cache.Prime(context.Background()))

	source.server.Close()

	_, err := cache.ResolvePublicKey(context.Background(), "key-1")
	assert.NoError(t, err)
}

/*
TestCache_RejectsBeyondMaxStale verifies the hard limit: past max-stale with
the authority down, resolution fails with upstream-unavailable material.
*/
func TestCache_RejectsBeyondMaxStale(t *testing.T) {
	source := newJWKSServer(t)
	source.publish(t, map[string]*rsa.PublicKey{"key-1": testPublicKey(t)})

	cache := newCache(source, 50*time.Millisecond)
	require.NoError(t, cache.Prime(context.Background()))

	source.server.Close()
	time.Sleep(100 * time.Millisecond)

	_, err := cache.ResolvePublicKey(context.Background(), "key-1")
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 503, appError.HTTPStatus)
}
