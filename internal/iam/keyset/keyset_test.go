// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyset_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/veyra/internal/iam/keyset"
	"github.com/taibuivan/veyra/internal/platform/apperr"
)

// memoryKeyRepository is an in-memory KeyRepository test double.
type memoryKeyRepository struct {
	keys []*keyset.SigningKey
}

func (repo *memoryKeyRepository) Save(_ context.Context, key *keyset.SigningKey) error {
	repo.keys = append(repo.keys, key)
	return nil
}

func (repo *memoryKeyRepository) FindCurrent(_ context.Context) (*keyset.SigningKey, error) {
	var newest *keyset.SigningKey
	now := time.Now()
	for _, key := range repo.keys {
		if key.Expired(now) {
			continue
		}
		if newest == nil || key.CreatedAt.After(newest.CreatedAt) {
			newest = key
		}
	}
	if newest == nil {
		return nil, apperr.NotFound("Signing key")
	}
	return newest, nil
}

func (repo *memoryKeyRepository) FindByKid(_ context.Context, kid string) (*keyset.SigningKey, error) {
	for _, key := range repo.keys {
		if key.Kid == kid {
			return key, nil
		}
	}
	return nil, apperr.NotFound("Signing key")
}

func (repo *memoryKeyRepository) ListPublishable(_ context.Context, grace time.Duration) ([]*keyset.SigningKey, error) {
	cutoff := time.Now().Add(-grace)
	out := make([]*keyset.SigningKey, 0, len(repo.keys))
	for _, key := range repo.keys {
		if key.ExpiresAt.After(cutoff) {
			out = append(out, key)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

/*
TestService_Bootstrap_GeneratesWhenEmpty verifies that an empty keyset yields
a fresh RSA pair with the expected kid format and expiry window.
*/
func TestService_Bootstrap_GeneratesWhenEmpty(t *testing.T) {
	repo := &memoryKeyRepository{}
	service := keyset.NewService(repo, 90*24*time.Hour, testLogger())

	require.NoError(t, service.Bootstrap(context.Background()))
	require.Len(t, repo.keys, 1)

	key := repo.keys[0]
	assert.True(t, strings.HasPrefix(key.Kid, "key-"))
	assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), key.ExpiresAt, time.Minute)

	// The generated material must parse back into usable RSA keys.
	signer, err := key.Signer()
	require.NoError(t, err)
	assert.Equal(t, 2048, signer.N.BitLen())

	_, err = key.Public()
	require.NoError(t, err)
}

/*
TestService_Bootstrap_ReusesExistingKey verifies that a usable persisted key
is loaded instead of generating a new one.
*/
func TestService_Bootstrap_ReusesExistingKey(t *testing.T) {
	repo := &memoryKeyRepository{}
	seed := keyset.NewService(repo, 90*24*time.Hour, testLogger())
	require.NoError(t, seed.Bootstrap(context.Background()))
	existingKid := repo.keys[0].Kid

	service := keyset.NewService(repo, 90*24*time.Hour, testLogger())
	require.NoError(t, service.Bootstrap(context.Background()))

	assert.Len(t, repo.keys, 1)

	current, err := service.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, existingKid, current.Kid)
}

/*
TestService_Current_RotatesExpiredKey verifies transparent rotation when the
cached signing key's window has closed.
*/
func TestService_Current_RotatesExpiredKey(t *testing.T) {
	repo := &memoryKeyRepository{}

	// Bootstrap with a nearly-expired window, then ask for the current key
	// after it lapses.
	service := keyset.NewService(repo, time.Millisecond, testLogger())
	require.NoError(t, service.Bootstrap(context.Background()))
	firstKid := repo.keys[0].Kid

	time.Sleep(5 * time.Millisecond)

	current, err := service.Current(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, firstKid, current.Kid)
	assert.Len(t, repo.keys, 2)
}

/*
TestService_ResolvePublicKey verifies kid resolution for current, historical,
and unknown kids.
*/
func TestService_ResolvePublicKey(t *testing.T) {
	repo := &memoryKeyRepository{}
	service := keyset.NewService(repo, 90*24*time.Hour, testLogger())
	require.NoError(t, service.Bootstrap(context.Background()))
	kid := repo.keys[0].Kid

	// 1. Cached current key resolves
	public, err := service.ResolvePublicKey(context.Background(), kid)
	require.NoError(t, err)
	assert.NotNil(t, public)

	// 2. Unknown kid fails with NotFound
	_, err = service.ResolvePublicKey(context.Background(), "key-0")
	require.Error(t, err)
	assert.NotNil(t, apperr.As(err))
}

/*
TestJWKSHandler verifies the published document shape: kid, alg, use, and no
private material.
*/
func TestJWKSHandler(t *testing.T) {
	repo := &memoryKeyRepository{}
	service := keyset.NewService(repo, 90*24*time.Hour, testLogger())
	require.NoError(t, service.Bootstrap(context.Background()))

	handler := keyset.NewJWKSHandler(service, 2*time.Hour)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/.well-known/jwks.json", nil))

	require.Equal(t, 200, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Cache-Control"), "max-age")

	var document struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &document))
	require.Len(t, document.Keys, 1)

	entry := document.Keys[0]
	assert.Equal(t, repo.keys[0].Kid, entry["kid"])
	assert.Equal(t, "RS256", entry["alg"])
	assert.Equal(t, "sig", entry["use"])
	assert.Equal(t, "RSA", entry["kty"])
	assert.NotEmpty(t, entry["n"])
	assert.NotEmpty(t, entry["e"])

	// Private exponent must never be published.
	assert.NotContains(t, entry, "d")
}
