// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP servers.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuer, cookie names, and trust headers.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "veyra"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in every token the authority mints.
	AuthIssuer = "veyra-identity"

	// AccessTokenCookieName is the cookie that mirrors the bearer access token.
	AccessTokenCookieName = "accessToken"

	// RefreshTokenCookieName is the cookie that stores the refresh token.
	RefreshTokenCookieName = "refreshToken"

	// AuthCookiePath scopes both auth cookies to the whole site so the gateway
	// sees them on every request.
	AuthCookiePath = "/"

	// DefaultTenantID is the shared marketplace tenant that customers join.
	DefaultTenantID = "00000000-0000-0000-0000-000000000000"

	// JWKSPath is the well-known location of the public signing keys.
	JWKSPath = "/.well-known/jwks.json"
)

// # HTTP Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"

	// Advisory identity headers stamped by the gateway. Backends treat these
	// as hints only; token claims remain the source of truth.
	HeaderXUserID   = "X-User-Id"
	HeaderXTenantID = "X-Tenant-Id"
	HeaderXRoles    = "X-Roles"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldItems   = "items"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaIAM      = "iam"
	SchemaProfiles = "profiles"
)

// # Redis Prefixes (Revocation Taxonomy)

const (
	// RedisPrefixBlacklist marks individual token IDs as revoked until expiry.
	RedisPrefixBlacklist = "jwt:blacklist:"

	// RedisPrefixRevocationEpoch stores the instant before which all of a
	// user's tokens are considered revoked.
	RedisPrefixRevocationEpoch = "user:revocation-epoch:"
)
