// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package revocation tracks which otherwise-valid access tokens must be
rejected before their natural expiry.

Two mechanisms back it, both in Redis with self-expiring keys:

  - Token blacklist: "jwt:blacklist:<jti>", written on logout with a TTL
    equal to the token's remaining lifetime.
  - User epoch: "user:revocation-epoch:<user_id>", a unix-seconds cutoff.
    Any token issued at or before the epoch is revoked, which makes
    "log out everywhere" a single write instead of enumerating sessions.

Reads run under a short timeout and honor a configurable failure mode:
closed (reject with 503 material) or open (admit and log). Writes always
fail closed, since losing a revocation is worse than retrying a logout.
*/
package revocation

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/constants"
)

// blacklistValue is the stored marker; only key existence matters.
const blacklistValue = "revoked"

// # Index

// Index is the shared revocation store used by the authority, the gateway,
// and backend validators.
type Index struct {
	client   *redis.Client
	timeout  time.Duration
	failOpen bool
	logger   *slog.Logger
}

// NewIndex constructs a revocation [Index].
//
// timeout bounds every Redis round trip so a slow store cannot stall the
// request path. failOpen selects the behavior when a READ fails: true admits
// the token (availability over strictness), false rejects it.
func NewIndex(client *redis.Client, timeout time.Duration, failOpen bool, logger *slog.Logger) *Index {
	return &Index{
		client:   client,
		timeout:  timeout,
		failOpen: failOpen,
		logger:   logger,
	}
}

func blacklistKey(jti string) string {
	return constants.RedisPrefixBlacklist + jti
}

func epochKey(userID string) string {
	return constants.RedisPrefixRevocationEpoch + userID
}

// # Writes (always fail closed)

/*
BlacklistToken marks a single token as revoked for the rest of its lifetime.

Description: The entry carries a TTL equal to the token's remaining validity,
so the blacklist never outlives the tokens it names. Tokens already expired
are skipped; nothing will accept them anyway.

Parameters:
  - context: context.Context
  - jti: string
  - remaining: time.Duration (token lifetime left)

Returns:
  - error: Redis failures; the revocation did NOT happen
*/
func (index *Index) BlacklistToken(context stdctx.Context, jti string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}

	bounded, cancel := stdctx.WithTimeout(context, index.timeout)
	defer cancel()

	if err := index.client.Set(bounded, blacklistKey(jti), blacklistValue, remaining).Err(); err != nil {
		return fmt.Errorf("revocation_blacklist_write_failed: %w", err)
	}
	return nil
}

/*
SetUserEpoch revokes every token a user holds that was issued at or before
the given instant.

Description: Stores the cutoff as unix seconds under the user's epoch key.
The TTL should cover the longest credential lifetime (the refresh TTL);
after that, no token old enough to be caught by the epoch can still exist.

Parameters:
  - context: context.Context
  - userID: string
  - at: time.Time (the cutoff instant)
  - ttl: time.Duration

Returns:
  - error: Redis failures; the revocation did NOT happen
*/
func (index *Index) SetUserEpoch(context stdctx.Context, userID string, at time.Time, ttl time.Duration) error {
	bounded, cancel := stdctx.WithTimeout(context, index.timeout)
	defer cancel()

	value := strconv.FormatInt(at.Unix(), 10)
	if err := index.client.Set(bounded, epochKey(userID), value, ttl).Err(); err != nil {
		return fmt.Errorf("revocation_epoch_write_failed: %w", err)
	}
	return nil
}

// # Reads (honor the failure mode)

/*
IsRevoked reports whether a verified token must be rejected.

Description: Checks the token blacklist first, then compares the token's
issue instant against the user's revocation epoch. When Redis is unreachable
the configured failure mode decides: open admits the token and logs, closed
returns apperr.UpstreamUnavailable so the caller responds 503.

Parameters:
  - context: context.Context
  - jti: string
  - userID: string
  - issuedAt: time.Time (the token's iat)

Returns:
  - bool: true when the token is revoked
  - error: apperr.UpstreamUnavailable in fail-closed mode only
*/
func (index *Index) IsRevoked(context stdctx.Context, jti string, userID string, issuedAt time.Time) (bool, error) {
	revoked, err := index.IsTokenRevoked(context, jti)
	if err != nil {
		return index.degrade(err)
	}
	if revoked {
		return true, nil
	}

	epoch, found, err := index.userEpoch(context, userID)
	if err != nil {
		return index.degrade(err)
	}
	if !found {
		return false, nil
	}

	// Issued at or before the cutoff: caught by "log out everywhere".
	return issuedAt.Unix() <= epoch.Unix(), nil
}

/*
IsTokenRevoked reports whether a single jti is on the blacklist.

Parameters:
  - context: context.Context
  - jti: string

Returns:
  - bool: true when blacklisted
  - error: Raw Redis failures (no failure-mode handling)
*/
func (index *Index) IsTokenRevoked(context stdctx.Context, jti string) (bool, error) {
	bounded, cancel := stdctx.WithTimeout(context, index.timeout)
	defer cancel()

	count, err := index.client.Exists(bounded, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation_blacklist_read_failed: %w", err)
	}
	return count > 0, nil
}

// userEpoch loads a user's revocation cutoff, reporting whether one is set.
func (index *Index) userEpoch(context stdctx.Context, userID string) (time.Time, bool, error) {
	bounded, cancel := stdctx.WithTimeout(context, index.timeout)
	defer cancel()

	raw, err := index.client.Get(bounded, epochKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("revocation_epoch_read_failed: %w", err)
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Corrupt entry. Treat as unset rather than locking the user out.
		index.logger.Warn("revocation_epoch_corrupt",
			slog.String("user_id", userID),
			slog.String("value", raw),
		)
		return time.Time{}, false, nil
	}

	return time.Unix(seconds, 0), true, nil
}

// degrade applies the configured failure mode to a read error.
func (index *Index) degrade(err error) (bool, error) {
	if index.failOpen {
		index.logger.Warn("revocation_check_degraded_open", slog.String("error", err.Error()))
		return false, nil
	}
	return false, apperr.UpstreamUnavailable(err)
}
