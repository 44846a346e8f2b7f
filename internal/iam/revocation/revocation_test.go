// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package revocation_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/platform/apperr"
)

func testIndex(t *testing.T, failOpen bool) (*revocation.Index, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.DiscardHandler)
	return revocation.NewIndex(client, 200*time.Millisecond, failOpen, logger), server
}

/*
TestIndex_BlacklistToken verifies single-token revocation: the entry exists
for the token's remaining lifetime and evaporates with it.
*/
func TestIndex_BlacklistToken(t *testing.T) {
	index, server := testIndex(t, false)
	ctx := context.Background()

	require.NoError(t, index.BlacklistToken(ctx, "jti-1", time.Hour))

	revoked, err := index.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Unrelated tokens stay valid.
	revoked, err = index.IsTokenRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	// The entry must not outlive the token it names.
	server.FastForward(2 * time.Hour)
	revoked, err = index.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

/*
TestIndex_BlacklistToken_SkipsExpired verifies that already-expired tokens
produce no blacklist entry at all.
*/
func TestIndex_BlacklistToken_SkipsExpired(t *testing.T) {
	index, server := testIndex(t, false)

	require.NoError(t, index.BlacklistToken(context.Background(), "jti-1", -time.Minute))
	assert.False(t, server.Exists("jwt:blacklist:jti-1"))
}

/*
TestIndex_UserEpoch verifies the "log out everywhere" cutoff: tokens issued
at or before the epoch are revoked, later ones survive.
*/
func TestIndex_UserEpoch(t *testing.T) {
	index, _ := testIndex(t, false)
	ctx := context.Background()

	cutoff := time.Now()
	require.NoError(t, index.SetUserEpoch(ctx, "user-1", cutoff, 720*time.Hour))

	// Issued before the cutoff: revoked.
	revoked, err := index.IsRevoked(ctx, "jti-old", "user-1", cutoff.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, revoked)

	// Issued exactly at the cutoff: revoked.
	revoked, err = index.IsRevoked(ctx, "jti-edge", "user-1", cutoff)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Issued after the cutoff: a fresh login post-logout stays valid.
	revoked, err = index.IsRevoked(ctx, "jti-new", "user-1", cutoff.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, revoked)

	// Other users are untouched.
	revoked, err = index.IsRevoked(ctx, "jti-x", "user-2", cutoff.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, revoked)
}

/*
TestIndex_IsRevoked_ChecksBlacklistFirst verifies that a blacklisted jti is
revoked even without a user epoch.
*/
func TestIndex_IsRevoked_ChecksBlacklistFirst(t *testing.T) {
	index, _ := testIndex(t, false)
	ctx := context.Background()

	require.NoError(t, index.BlacklistToken(ctx, "jti-1", time.Hour))

	revoked, err := index.IsRevoked(ctx, "jti-1", "user-1", time.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
}

/*
TestIndex_FailureModes verifies the degraded-read behavior: closed rejects
with upstream-unavailable material, open admits and carries on.
*/
func TestIndex_FailureModes(t *testing.T) {
	t.Run("closed rejects", func(t *testing.T) {
		index, server := testIndex(t, false)
		server.Close()

		_, err := index.IsRevoked(context.Background(), "jti-1", "user-1", time.Now())
		require.Error(t, err)

		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 503, appError.HTTPStatus)
	})

	t.Run("open admits", func(t *testing.T) {
		index, server := testIndex(t, true)
		server.Close()

		revoked, err := index.IsRevoked(context.Background(), "jti-1", "user-1", time.Now())
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("writes always fail closed", func(t *testing.T) {
		index, server := testIndex(t, true)
		server.Close()

		assert.Error(t, index.BlacklistToken(context.Background(), "jti-1", time.Hour))
		assert.Error(t, index.SetUserEpoch(context.Background(), "user-1", time.Now(), time.Hour))
	})
}

/*
TestIndex_CorruptEpochIgnored verifies that an unparseable epoch entry does
not lock the user out.
*/
func TestIndex_CorruptEpochIgnored(t *testing.T) {
	index, server := testIndex(t, false)

	require.NoError(t, server.Set("user:revocation-epoch:user-1", "not-a-number"))

	revoked, err := index.IsRevoked(context.Background(), "jti-1", "user-1", time.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
}
