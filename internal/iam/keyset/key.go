// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package keyset manages the RSA signing keys behind every access token.

It owns the full key lifecycle: bootstrap generation on first start,
persistence in PostgreSQL as PEM, overlap-friendly rotation, and the public
JWKS document that gateways and backends verify against.

Architecture:

  - SigningKey: Domain entity holding the PEM-encoded pair and its window.
  - Repository: Abstracted Postgres persistence (iam.signingkey).
  - Service: Bootstrap/rotation orchestration with an in-process cache.
  - JWKS: RFC 7517 publication of every still-verifiable public key.

Expired keys stop signing immediately but remain published until their last
issued token has aged out, so verification never races a rotation.
*/
package keyset

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// # Domain Entity

// SigningKey is one RSA key pair in the authority's keyset.
type SigningKey struct {
	// Kid is the key identifier stamped into every token header
	// (format: key-<unix-millis-at-creation>).
	Kid string `json:"kid"`

	// PrivateKeyPEM is the PKCS#1 private key. Never serialized.
	PrivateKeyPEM string `json:"-"`

	// PublicKeyPEM is the PKIX public key.
	PublicKeyPEM string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the key's signing window has closed at the instant.
func (key *SigningKey) Expired(at time.Time) bool {
	return !at.Before(key.ExpiresAt)
}

// Signer parses and returns the RSA private key.
func (key *SigningKey) Signer() (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(key.PrivateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("keyset: private key %s is not valid PEM", key.Kid)
	}

	private, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keyset: failed to parse private key %s: %w", key.Kid, err)
	}

	return private, nil
}

// Public parses and returns the RSA public key.
func (key *SigningKey) Public() (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(key.PublicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("keyset: public key %s is not valid PEM", key.Kid)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keyset: failed to parse public key %s: %w", key.Kid, err)
	}

	public, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keyset: key %s is not an RSA public key", key.Kid)
	}

	return public, nil
}

// # Data Access

// KeyRepository defines the persistence contract for signing keys.
type KeyRepository interface {

	/*
		Save persists a freshly generated signing key.

		Parameters:
		  - context: context.Context
		  - key: *SigningKey

		Returns:
		  - error: Persistence failures
	*/
	Save(context context.Context, key *SigningKey) error

	/*
		FindCurrent returns the newest key whose signing window is still open.

		Parameters:
		  - context: context.Context

		Returns:
		  - *SigningKey: Hydrated entity
		  - error: apperr.NotFound when the keyset is empty or fully expired
	*/
	FindCurrent(context context.Context) (*SigningKey, error)

	/*
		FindByKid returns the key with the given identifier regardless of expiry.

		Parameters:
		  - context: context.Context
		  - kid: string

		Returns:
		  - *SigningKey: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByKid(context context.Context, kid string) (*SigningKey, error)

	/*
		ListPublishable returns every key that may still verify a live token:
		unexpired keys plus keys expired for less than the grace window.

		Parameters:
		  - context: context.Context
		  - grace: time.Duration

		Returns:
		  - []*SigningKey: Newest first
		  - error: Retrieval failures
	*/
	ListPublishable(context context.Context, grace time.Duration) ([]*SigningKey, error)
}
