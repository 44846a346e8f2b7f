// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"

	"github.com/taibuivan/veyra/internal/platform/sec"
)

// # Tenant Data Access

// TenantRepository defines the data access contract for tenants.
type TenantRepository interface {

	/*
		Create persists a brand-new tenant.

		Parameters:
		  - context: context.Context
		  - tenant: *Tenant

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, tenant *Tenant) error

	/*
		FindByID returns the tenant with the given id.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Tenant: Hydrated entity
		  - error: apperr.NotFound or database errors
	*/
	FindByID(context context.Context, id string) (*Tenant, error)
}

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Tenant-scoped uniqueness is enforced by storage constraints, not by
// pre-flight lookups; Create surfaces violations as EmailTaken/PhoneTaken.
type UserRepository interface {

	/*
		Create persists a new account. Role grants are stored separately.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.EmailTaken, apperr.PhoneTaken, or database errors
	*/
	Create(context context.Context, user *User) error

	/*
		FindByID returns the account with the given id, roles hydrated.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database errors
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the oldest account registered under the email,
		roles hydrated. Login resolves identifiers across tenants; the
		first-registered account wins.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database errors
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByPhone returns the oldest account registered under the phone
		number, roles hydrated.

		Parameters:
		  - context: context.Context
		  - phone: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database errors
	*/
	FindByPhone(context context.Context, phone string) (*User, error)
}

// # Role Grant Data Access

// RoleGrantRepository defines the data access contract for role grants.
type RoleGrantRepository interface {

	/*
		Grant persists a role for a user. Granting an already-held role is
		a no-op.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - role: sec.Role

		Returns:
		  - error: Persistence failures
	*/
	Grant(context context.Context, userID string, role sec.Role) error

	/*
		FindRoles returns every role granted to the user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []sec.Role: Granted roles
		  - error: Database errors
	*/
	FindRoles(context context.Context, userID string) ([]sec.Role, error)
}

// # Refresh Token Data Access

// RefreshTokenRepository defines the data access contract for session handles.
type RefreshTokenRepository interface {

	/*
		Create persists a freshly minted refresh token (hash only).

		Parameters:
		  - context: context.Context
		  - token: *RefreshToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *RefreshToken) error

	/*
		FindByTokenHash returns the token matching the hash, including
		revoked and expired rows; liveness is the caller's decision.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *RefreshToken: Hydrated entity
		  - error: apperr.NotFound or database errors
	*/
	FindByTokenHash(context context.Context, tokenHash string) (*RefreshToken, error)

	/*
		Revoke marks a specific token as permanently invalidated.

		Parameters:
		  - context: context.Context
		  - tokenID: string

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, tokenID string) error

	/*
		RevokeAllForUser revokes every active token belonging to the user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID string) error

	/*
		DeleteExpired physically removes tokens whose ExpiresAt is past.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context) error
}

// # Transactional Access

// Repositories bundles the identity repositories over one database handle,
// either the shared pool or a single transaction.
type Repositories struct {
	Tenants       TenantRepository
	Users         UserRepository
	Roles         RoleGrantRepository
	RefreshTokens RefreshTokenRepository
}

// TxRunner executes a function with repositories bound to one transaction.
// Registration needs it: tenant, account, grant, and session must commit or
// roll back as a unit.
type TxRunner interface {

	/*
		InTx runs fn inside a database transaction, committing on nil and
		rolling back on error or panic.

		Parameters:
		  - context: context.Context
		  - fn: func(repos Repositories) error

		Returns:
		  - error: fn's error or transaction failures
	*/
	InTx(context context.Context, fn func(repos Repositories) error) error
}
