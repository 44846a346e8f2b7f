// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// PostgreSQL implementations of the identity repositories.
//
// # Architecture
//
// Every repository runs against a querier, which both [pgxpool.Pool] and
// [pgx.Tx] satisfy. The same repository code therefore serves pooled
// auto-commit access and the registration transaction without duplication.
//
// # Error Mapping
//
// Storage-specific errors (pgx.ErrNoRows, unique violations) are mapped to
// domain-friendly [apperr.AppError] values so callers never see driver
// internals. The tenant-scoped unique indexes map by constraint name to
// EmailTaken / PhoneTaken.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/dberr"
	"github.com/taibuivan/veyra/internal/platform/sec"
)

// Tenant-scoped unique index names, matched against constraint violations.
const (
	constraintEmailTenant = "uq_account_email_tenant"
	constraintPhoneTenant = "uq_account_phone_tenant"
)

// querier is the subset of pgx both the pool and a transaction implement.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// # Store

// PostgresStore owns the pool and hands out repositories, pooled or
// transaction-bound.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the identity storage layer over a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Repositories returns pooled, auto-commit repositories.
func (store *PostgresStore) Repositories() Repositories {
	return repositoriesOver(store.pool)
}

/*
InTx runs fn with repositories bound to a single transaction.

Description: Commits when fn returns nil, rolls back otherwise. Used by
registration, where tenant, account, grant, and session rows must land
atomically.

Parameters:
  - context: context.Context
  - fn: func(repos Repositories) error

Returns:
  - error: fn's error or transaction begin/commit failures
*/
func (store *PostgresStore) InTx(context context.Context, fn func(repos Repositories) error) error {
	tx, err := store.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_store_begin_failed: %w", err)
	}
	defer func() { _ = tx.Rollback(context) }()

	if err := fn(repositoriesOver(tx)); err != nil {
		return err
	}

	if err := tx.Commit(context); err != nil {
		return fmt.Errorf("postgres_store_commit_failed: %w", err)
	}
	return nil
}

func repositoriesOver(db querier) Repositories {
	return Repositories{
		Tenants:       &PostgresTenantRepository{db: db},
		Users:         &PostgresUserRepository{db: db},
		Roles:         &PostgresRoleGrantRepository{db: db},
		RefreshTokens: &PostgresRefreshTokenRepository{db: db},
	}
}

// # Tenant Repository

// PostgresTenantRepository implements the TenantRepository interface using pgx.
type PostgresTenantRepository struct {
	db querier
}

/*
Create persists a new tenant record into the iam.tenant table.

Parameters:
  - context: context.Context
  - tenant: *Tenant

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresTenantRepository) Create(context context.Context, tenant *Tenant) error {
	const query = `
		INSERT INTO iam.tenant (
			id, name, status, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5)`

	now := time.Now()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now
	if tenant.Status == "" {
		tenant.Status = TenantActive
	}

	_, err := repository.db.Exec(context, query,
		tenant.ID,
		tenant.Name,
		tenant.Status,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_tenant_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a tenant by its unique id.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Tenant: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresTenantRepository) FindByID(context context.Context, id string) (*Tenant, error) {
	const query = `
		SELECT id, name, status, createdat, updatedat
		FROM iam.tenant
		WHERE id = $1`

	tenant := &Tenant{}
	err := repository.db.QueryRow(context, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Status,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Tenant")
		}
		return nil, fmt.Errorf("postgres_tenant_repo_find_failed: %w", err)
	}

	return tenant, nil
}

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	db querier
}

const userColumns = `
	id, tenantid, email, phone, passwordhash, passwordsalt,
	enabled, emailverified, phoneverified, createdat, updatedat`

/*
Create persists a new account record into the iam.account table.

Description: Nullable identifiers are stored as SQL NULL so the partial
unique indexes only bite when the column is present. Violations of the
tenant-scoped indexes surface as EmailTaken / PhoneTaken.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: apperr.EmailTaken, apperr.PhoneTaken, or database errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO iam.account (
			id, tenantid, email, phone, passwordhash, passwordsalt,
			enabled, emailverified, phoneverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.db.Exec(context, query,
		user.ID,
		user.TenantID,
		nullable(user.Email),
		nullable(user.Phone),
		user.PasswordHash,
		user.PasswordSalt,
		user.Enabled,
		user.EmailVerified,
		user.PhoneVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			switch dberr.ConstraintName(err) {
			case constraintEmailTenant:
				return apperr.EmailTaken()
			case constraintPhoneTenant:
				return apperr.PhoneTaken()
			}
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves an account by its primary key, roles hydrated.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM iam.account
		WHERE id = $1 AND deletedat IS NULL`

	return repository.findOne(context, query, id)
}

/*
FindByEmail retrieves the oldest account registered under the email.

Description: Identifiers are only unique per tenant; cross-tenant login
resolves to the first-registered account, which keeps the lookup
deterministic.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM iam.account
		WHERE email = $1 AND deletedat IS NULL
		ORDER BY createdat ASC
		LIMIT 1`

	return repository.findOne(context, query, email)
}

/*
FindByPhone retrieves the oldest account registered under the phone number.

Parameters:
  - context: context.Context
  - phone: string

Returns:
  - *User: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByPhone(context context.Context, phone string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM iam.account
		WHERE phone = $1 AND deletedat IS NULL
		ORDER BY createdat ASC
		LIMIT 1`

	return repository.findOne(context, query, phone)
}

func (repository *PostgresUserRepository) findOne(context context.Context, query string, argument any) (*User, error) {
	user := &User{}
	var email, phone *string

	err := repository.db.QueryRow(context, query, argument).Scan(
		&user.ID,
		&user.TenantID,
		&email,
		&phone,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.Enabled,
		&user.EmailVerified,
		&user.PhoneVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_failed: %w", err)
	}

	if email != nil {
		user.Email = *email
	}
	if phone != nil {
		user.Phone = *phone
	}

	roles, err := (&PostgresRoleGrantRepository{db: repository.db}).FindRoles(context, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// # Role Grant Repository

// PostgresRoleGrantRepository implements the RoleGrantRepository interface.
type PostgresRoleGrantRepository struct {
	db querier
}

/*
Grant persists a role for a user into the iam.rolegrant table.

Description: Idempotent; re-granting a held role is swallowed by the
conflict clause.

Parameters:
  - context: context.Context
  - userID: string
  - role: sec.Role

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRoleGrantRepository) Grant(context context.Context, userID string, role sec.Role) error {
	const query = `
		INSERT INTO iam.rolegrant (userid, role, createdat)
		VALUES ($1, $2, $3)
		ON CONFLICT (userid, role) DO NOTHING`

	_, err := repository.db.Exec(context, query, userID, string(role), time.Now())
	if err != nil {
		return fmt.Errorf("postgres_rolegrant_repo_grant_failed: %w", err)
	}
	return nil
}

/*
FindRoles returns every role granted to the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []sec.Role: Granted roles, oldest grant first
  - error: Database errors
*/
func (repository *PostgresRoleGrantRepository) FindRoles(context context.Context, userID string) ([]sec.Role, error) {
	const query = `
		SELECT role
		FROM iam.rolegrant
		WHERE userid = $1
		ORDER BY createdat ASC`

	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_rolegrant_repo_find_failed: %w", err)
	}
	defer rows.Close()

	roles := make([]sec.Role, 0, 2)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres_rolegrant_repo_scan_failed: %w", err)
		}
		roles = append(roles, sec.Role(raw))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_rolegrant_repo_rows_failed: %w", err)
	}

	return roles, nil
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements the RefreshTokenRepository interface.
type PostgresRefreshTokenRepository struct {
	db querier
}

/*
Create persists a new session handle into the iam.refreshtoken table.

Parameters:
  - context: context.Context
  - token: *RefreshToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	const query = `
		INSERT INTO iam.refreshtoken (
			id, userid, tokenhash, expiresat, isrevoked, createdat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.db.Exec(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.IsRevoked,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByTokenHash retrieves a session handle by its token hash.

Description: Returns revoked and expired rows too; the orchestrator decides
liveness, because "already revoked" and "never existed" produce different
audit trails.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *RefreshToken: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRefreshTokenRepository) FindByTokenHash(context context.Context, tokenHash string) (*RefreshToken, error) {
	const query = `
		SELECT id, userid, tokenhash, expiresat, isrevoked, createdat
		FROM iam.refreshtoken
		WHERE tokenhash = $1`

	token := &RefreshToken{}
	err := repository.db.QueryRow(context, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.IsRevoked,
		&token.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Refresh token")
		}
		return nil, fmt.Errorf("postgres_refresh_repo_find_failed: %w", err)
	}

	return token, nil
}

/*
Revoke marks a specific session handle as revoked.

Parameters:
  - context: context.Context
  - tokenID: string

Returns:
  - error: Revocation failures
*/
func (repository *PostgresRefreshTokenRepository) Revoke(context context.Context, tokenID string) error {
	const query = "UPDATE iam.refreshtoken SET isrevoked = TRUE WHERE id = $1"
	_, err := repository.db.Exec(context, query, tokenID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_failed: %w", err)
	}
	return nil
}

/*
RevokeAllForUser marks all active session handles for a user as revoked.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeAllForUser(context context.Context, userID string) error {
	const query = "UPDATE iam.refreshtoken SET isrevoked = TRUE WHERE userid = $1 AND isrevoked = FALSE"
	_, err := repository.db.Exec(context, query, userID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_all_failed: %w", err)
	}
	return nil
}

/*
DeleteExpired permanently removes session handles past their expiration.

Description: Cleanup task to reclaim storage from stale sessions.

Parameters:
  - context: context.Context

Returns:
  - error: Cleanup failures
*/
func (repository *PostgresRefreshTokenRepository) DeleteExpired(context context.Context) error {
	const query = "DELETE FROM iam.refreshtoken WHERE expiresat <= NOW()"
	_, err := repository.db.Exec(context, query)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_delete_expired_failed: %w", err)
	}
	return nil
}
