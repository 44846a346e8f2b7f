// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides security primitives shared by every service:
// the authenticated principal, the marketplace role model, and the
// credential extraction rules for HTTP requests.
//
// # Architecture
//
// This package isolates security-sensitive representations from domain
// logic. Token minting and verification live in internal/iam/token; what
// flows through request contexts after verification is the [Principal]
// defined here.
package sec

import "time"

// Principal is the verified identity attached to a request context.
//
// It is derived exclusively from a cryptographically verified access token.
// Advisory gateway headers (X-User-Id and friends) are never used to build
// a Principal.
type Principal struct {
	// UserID is the account's unique identifier (the token 'sub').
	UserID string

	// TenantID scopes every data access the principal performs.
	TenantID string

	// Roles holds the marketplace roles granted to the account.
	Roles []Role

	// Email and Phone are the identifiers the account registered with.
	// At least one of them is always present.
	Email string
	Phone string

	// TokenID is the unique 'jti' of the presenting token, used for
	// single-token revocation.
	TokenID string

	// IssuedAt is when the presenting token was minted. Validators compare
	// it against the account's revocation epoch.
	IssuedAt time.Time
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal carries at least one of the roles.
func (p *Principal) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal is a platform operator.
// Admins bypass tenant isolation checks.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}
