// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package profile manages marketplace user profiles.

It is the reference backend domain for the platform's trust model: every
operation derives the caller from the request principal and every access to
another user's profile goes through tenant and ownership authorization.

# Architecture

  - Entities: Profile.
  - Storage: PostgreSQL under the profiles schema.
  - Security: tenant scoping and ownership checks via the trust package.
*/
package profile

import (
	"context"
	"time"
)

// # Domain Entities

// Profile holds the public-facing identity a user presents on the
// marketplace, separate from the credential record the iam packages own.
type Profile struct {
	UserID      string    `json:"user_id"`
	TenantID    string    `json:"tenant_id"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// # Repository Contracts

// Repository defines the persistence contract for profiles.
type Repository interface {
	/*
		FindByUserID retrieves the profile owned by a user.

		Parameters:
		  - context: context.Context
		  - userID: string (UUID)

		Returns:
		  - *Profile: Hydrated profile
		  - error: apperr.NotFound or storage failures
	*/
	FindByUserID(context context.Context, userID string) (*Profile, error)

	/*
		Upsert creates the profile on first write and updates it afterwards.

		Parameters:
		  - context: context.Context
		  - profile: *Profile

		Returns:
		  - error: Storage failures
	*/
	Upsert(context context.Context, profile *Profile) error

	/*
		ListByTenant returns one page of profiles within a tenant, newest first.

		Parameters:
		  - context: context.Context
		  - tenantID: string
		  - limit: int
		  - offset: int

		Returns:
		  - []Profile: The requested page
		  - int: Total profile count in the tenant
		  - error: Storage failures
	*/
	ListByTenant(context context.Context, tenantID string, limit, offset int) ([]Profile, int, error)
}
