// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/veyra/internal/platform/apperr"
)

// PostgresKeyRepository implements the KeyRepository interface using pgx.
type PostgresKeyRepository struct {
	pool *pgxpool.Pool
}

// NewKeyRepository creates a new PostgreSQL implementation of the KeyRepository.
func NewKeyRepository(pool *pgxpool.Pool) *PostgresKeyRepository {
	return &PostgresKeyRepository{pool: pool}
}

/*
Save persists a signing key into the iam.signingkey table.

Parameters:
  - context: context.Context
  - key: *SigningKey

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresKeyRepository) Save(context context.Context, key *SigningKey) error {
	const query = `
		INSERT INTO iam.signingkey (
			kid, privatekeypem, publickeypem, createdat, expiresat
		) VALUES ($1, $2, $3, $4, $5)`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		key.Kid,
		key.PrivateKeyPEM,
		key.PublicKeyPEM,
		key.CreatedAt,
		key.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_key_repo_save_failed: %w", err)
	}

	return nil
}

/*
FindCurrent retrieves the newest key whose signing window is still open.

Parameters:
  - context: context.Context

Returns:
  - *SigningKey: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresKeyRepository) FindCurrent(context context.Context) (*SigningKey, error) {
	const query = `
		SELECT kid, privatekeypem, publickeypem, createdat, expiresat
		FROM iam.signingkey
		WHERE expiresat > NOW()
		ORDER BY createdat DESC
		LIMIT 1`

	key := &SigningKey{}
	err := repository.pool.QueryRow(context, query).Scan(
		&key.Kid,
		&key.PrivateKeyPEM,
		&key.PublicKeyPEM,
		&key.CreatedAt,
		&key.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Signing key")
		}
		return nil, fmt.Errorf("postgres_key_repo_find_current_failed: %w", err)
	}

	return key, nil
}

/*
FindByKid retrieves a key by its identifier regardless of expiry.

Parameters:
  - context: context.Context
  - kid: string

Returns:
  - *SigningKey: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresKeyRepository) FindByKid(context context.Context, kid string) (*SigningKey, error) {
	const query = `
		SELECT kid, privatekeypem, publickeypem, createdat, expiresat
		FROM iam.signingkey
		WHERE kid = $1`

	key := &SigningKey{}
	err := repository.pool.QueryRow(context, query, kid).Scan(
		&key.Kid,
		&key.PrivateKeyPEM,
		&key.PublicKeyPEM,
		&key.CreatedAt,
		&key.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Signing key")
		}
		return nil, fmt.Errorf("postgres_key_repo_find_by_kid_failed: %w", err)
	}

	return key, nil
}

/*
ListPublishable retrieves all keys that may still verify a live token.

Description: Includes unexpired keys and keys expired less than the grace
window ago, so tokens signed just before a rotation keep verifying.

Parameters:
  - context: context.Context
  - grace: time.Duration

Returns:
  - []*SigningKey: Newest first
  - error: Database errors
*/
func (repository *PostgresKeyRepository) ListPublishable(context context.Context, grace time.Duration) ([]*SigningKey, error) {
	const query = `
		SELECT kid, privatekeypem, publickeypem, createdat, expiresat
		FROM iam.signingkey
		WHERE expiresat > $1
		ORDER BY createdat DESC`

	cutoff := time.Now().Add(-grace)
	rows, err := repository.pool.Query(context, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres_key_repo_list_failed: %w", err)
	}
	defer rows.Close()

	keys := make([]*SigningKey, 0, 4)
	for rows.Next() {
		key := &SigningKey{}
		if err := rows.Scan(
			&key.Kid,
			&key.PrivateKeyPEM,
			&key.PublicKeyPEM,
			&key.CreatedAt,
			&key.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_key_repo_scan_failed: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_key_repo_rows_failed: %w", err)
	}

	return keys, nil
}
