// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package token mints and verifies the RS256 access tokens of the platform.

It is deliberately split from key management (internal/iam/keyset) and from
revocation (internal/iam/revocation): this package answers only "is this
token authentic and current", never "has it been revoked".

Architecture:

  - AccessClaims: The claim set every Veyra token carries.
  - Minter: Signs tokens with the authority's current key (kid in header).
  - Verifier: Validates signature, expiry, and issuer against any
    [KeyResolver] (the local keyset in the authority, the shared JWKS
    cache in gateways and backends).

Verification failures are classified into typed sentinel errors so callers
can distinguish a stale-key retry (ErrUnknownKid) from a hard rejection.
*/
package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taibuivan/veyra/internal/iam/keyset"
	"github.com/taibuivan/veyra/internal/platform/sec"
)

// # Claims

// AccessClaims is the payload embedded inside every Veyra access token.
//
// # Why custom claims?
//
// Embedding the tenant, roles, and contact identifiers lets every validator
// reconstruct the request principal WITHOUT querying the identity database,
// which is what makes gateway-side validation cheap.
type AccessClaims struct {
	jwt.RegisteredClaims

	// UserID duplicates 'sub' under the explicit name older clients read.
	UserID   string   `json:"userId"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
}

// Principal converts verified claims into the request principal.
func (claims *AccessClaims) Principal() *sec.Principal {
	principal := &sec.Principal{
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
		Roles:    sec.ParseRoles(claims.Roles),
		Email:    claims.Email,
		Phone:    claims.Phone,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time
	}
	return principal
}

// # Verification Errors

var (
	// ErrMalformed rejects byte sequences that are not a JWT at all.
	ErrMalformed = errors.New("token: malformed token")

	// ErrExpired rejects structurally valid tokens past their 'exp'.
	ErrExpired = errors.New("token: token expired")

	// ErrUnknownKid rejects tokens whose signing key the resolver cannot
	// find. Validators with a JWKS cache treat this as a refresh trigger.
	ErrUnknownKid = errors.New("token: unknown signing key")

	// ErrBadSignature rejects tokens whose signature does not verify.
	ErrBadSignature = errors.New("token: signature verification failed")
)

// # Minting

// KeySource supplies the key to sign with. Implemented by [keyset.Service].
type KeySource interface {
	Current(context context.Context) (*keyset.SigningKey, error)
}

// Minter issues signed access tokens.
type Minter struct {
	keys   KeySource
	issuer string
}

// NewMinter constructs a [Minter] bound to the given key source and issuer.
func NewMinter(keys KeySource, issuer string) *Minter {
	return &Minter{keys: keys, issuer: issuer}
}

// MintInput holds the identity facts stamped into a new access token.
type MintInput struct {
	UserID   string
	TenantID string
	Roles    []string
	Email    string
	Phone    string
	TTL      time.Duration
}

/*
Mint creates a signed RS256 access token.

Description: Stamps the standard claim set (sub, iss, iat, exp, random v4
jti) plus the Veyra identity claims, and records the signing key's kid in
the token header so validators can pick the right public key.

Parameters:
  - context: context.Context
  - input: MintInput

Returns:
  - string: The compact signed token
  - *AccessClaims: The claims that were signed (for logging/cookies)
  - error: Key retrieval or signing failures
*/
func (minter *Minter) Mint(context context.Context, input MintInput) (string, *AccessClaims, error) {
	signingKey, err := minter.keys.Current(context)
	if err != nil {
		return "", nil, fmt.Errorf("token_mint_key_failed: %w", err)
	}

	private, err := signingKey.Signer()
	if err != nil {
		return "", nil, fmt.Errorf("token_mint_parse_key_failed: %w", err)
	}

	currentTime := time.Now()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    minter.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(input.TTL)),
		},
		UserID:   input.UserID,
		TenantID: input.TenantID,
		Roles:    input.Roles,
		Email:    input.Email,
		Phone:    input.Phone,
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	unsigned.Header["kid"] = signingKey.Kid

	signed, err := unsigned.SignedString(private)
	if err != nil {
		return "", nil, fmt.Errorf("token_mint_sign_failed: %w", err)
	}

	return signed, claims, nil
}

// # Verification

// KeyResolver maps a token header kid to its RSA public key.
// Implemented by [keyset.Service] locally and by the shared JWKS cache.
type KeyResolver interface {
	ResolvePublicKey(context context.Context, kid string) (*rsa.PublicKey, error)
}

// Verifier validates access tokens against a [KeyResolver].
type Verifier struct {
	resolver KeyResolver
	issuer   string
}

// NewVerifier constructs a [Verifier].
func NewVerifier(resolver KeyResolver, issuer string) *Verifier {
	return &Verifier{resolver: resolver, issuer: issuer}
}

/*
Verify checks a compact token's signature, expiry, and issuer.

Parameters:
  - context: context.Context
  - tokenString: string

Returns:
  - *AccessClaims: Verified claims
  - error: ErrMalformed, ErrExpired, ErrUnknownKid, or ErrBadSignature
*/
func (verifier *Verifier) Verify(context context.Context, tokenString string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{},
		func(unverified *jwt.Token) (interface{}, error) {
			if _, ok := unverified.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("%w: unexpected signing method %v", ErrBadSignature, unverified.Header["alg"])
			}

			kid, ok := unverified.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, fmt.Errorf("%w: missing kid header", ErrUnknownKid)
			}

			public, resolveErr := verifier.resolver.ResolvePublicKey(context, kid)
			if resolveErr != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKid, kid)
			}
			return public, nil
		},
		jwt.WithIssuer(verifier.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)

	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}

	return claims, nil
}

/*
ParseUnverified decodes a token's claims WITHOUT any validation.

Description: Used only for advisory cross-checks (e.g. matching an expired
access token's subject during refresh). Never derive a principal from it.

Parameters:
  - tokenString: string

Returns:
  - *AccessClaims: Decoded, unverified claims
  - error: ErrMalformed for undecodable input
*/
func ParseUnverified(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrMalformed
	}
	return claims, nil
}

// classify folds golang-jwt's error chain into the package sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKid):
		return ErrUnknownKid
	case errors.Is(err, ErrBadSignature):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		// Issuer mismatch, not-yet-valid, and anything unexpected all reject
		// the same way from a client's perspective.
		return ErrBadSignature
	}
}
