// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/veyra/internal/platform/apperr"
)

// # Repository Implementation

// PostgresRepository implements [Repository] over the profiles.profile table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates the Postgres-backed profile repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

/*
FindByUserID retrieves a profile row by its owning user.

Parameters:
  - context: context.Context
  - userID: string (UUID)

Returns:
  - *Profile: Hydrated profile
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresRepository) FindByUserID(context context.Context, userID string) (*Profile, error) {
	query := `
		SELECT userid, tenantid, displayname, bio, createdat, updatedat
		FROM profiles.profile
		WHERE userid = $1`

	var record Profile
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&record.UserID,
		&record.TenantID,
		&record.DisplayName,
		&record.Bio,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Profile")
		}
		return nil, fmt.Errorf("profile_find_failed: %w", err)
	}

	return &record, nil
}

/*
Upsert inserts the profile row, or updates the mutable fields when the user
already has one.

Parameters:
  - context: context.Context
  - profile: *Profile

Returns:
  - error: Database execution failure
*/
func (repository *PostgresRepository) Upsert(context context.Context, profile *Profile) error {
	query := `
		INSERT INTO profiles.profile (userid, tenantid, displayname, bio, createdat, updatedat)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (userid) DO UPDATE SET
			displayname = EXCLUDED.displayname,
			bio = EXCLUDED.bio,
			updatedat = EXCLUDED.updatedat`

	_, err := repository.pool.Exec(context, query,
		profile.UserID,
		profile.TenantID,
		profile.DisplayName,
		profile.Bio,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("profile_upsert_failed: %w", err)
	}

	return nil
}

/*
ListByTenant returns one page of profiles within a tenant, newest first,
together with the tenant's total count.

Parameters:
  - context: context.Context
  - tenantID: string
  - limit: int
  - offset: int

Returns:
  - []Profile: The requested page
  - int: Total profile count in the tenant
  - error: Database execution failure
*/
func (repository *PostgresRepository) ListByTenant(context context.Context, tenantID string, limit, offset int) ([]Profile, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM profiles.profile WHERE tenantid = $1`
	if err := repository.pool.QueryRow(context, countQuery, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("profile_count_failed: %w", err)
	}

	query := `
		SELECT userid, tenantid, displayname, bio, createdat, updatedat
		FROM profiles.profile
		WHERE tenantid = $1
		ORDER BY createdat DESC
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("profile_list_failed: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		var record Profile
		if err := rows.Scan(
			&record.UserID,
			&record.TenantID,
			&record.DisplayName,
			&record.Bio,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("profile_scan_failed: %w", err)
		}
		profiles = append(profiles, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("profile_rows_failed: %w", err)
	}

	return profiles, total, nil
}
