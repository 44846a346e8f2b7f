// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the identity core of the Veyra platform.

It defines the domain entities (Tenant, User, RoleGrant, RefreshToken) and
the orchestration flows that compose hashing, key management, token minting,
and revocation into the five credential operations: Register, Login,
Refresh, Logout, and LogoutAll.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
external dependencies and encapsulate all business rules related to
identity. Every identity is scoped to a tenant: the same email may exist
once per tenant, never twice within one.
*/
package auth

import (
	"time"

	"github.com/taibuivan/veyra/internal/platform/sec"
)

// # Domain Entities

// TenantStatus enumerates the lifecycle states of a tenant.
type TenantStatus string

const (
	TenantActive   TenantStatus = "ACTIVE"
	TenantInactive TenantStatus = "INACTIVE"
)

// Tenant represents an isolation boundary within the marketplace.
//
// Tenants are never deleted; only their status changes. The default
// marketplace tenant is seeded by migration under a fixed well-known id.
type Tenant struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// User represents an account registered within one tenant.
//
// At least one of Email or Phone is always set. Roles are persisted as
// separate grant rows and hydrated onto the entity by the repositories.
type User struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	PasswordHash  string     `json:"-"` // Explicitly omitted from JSON for security.
	PasswordSalt  string     `json:"-"` // Explicitly omitted from JSON for security.
	Enabled       bool       `json:"enabled"`
	EmailVerified bool       `json:"email_verified"`
	PhoneVerified bool       `json:"phone_verified"`
	Roles         []sec.Role `json:"roles"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Identifier returns the user's primary contact handle, preferring email.
func (user *User) Identifier() string {
	if user.Email != "" {
		return user.Email
	}
	return user.Phone
}

// RoleStrings returns the user's grants as plain strings for token claims.
func (user *User) RoleStrings() []string {
	return sec.RoleStrings(user.Roles)
}

// RefreshToken represents a persisted long-lived session handle.
//
// Only the deterministic hash of the opaque token is stored; the cleartext
// is returned to the client exactly once at mint time.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"` // Hashed value of the refresh token. Omitted for security.
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the token can still mint access tokens.
func (token *RefreshToken) Active(at time.Time) bool {
	return !token.IsRevoked && token.ExpiresAt.After(at)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldPassword     = "password"
	FieldRole         = "role"
	FieldTenantID     = "tenant_id"
	FieldRefreshToken = "refresh_token"
	FieldAccessToken  = "access_token"
	FieldToken        = "token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldUserID       = "id"
	FieldMessage      = "message"
)
