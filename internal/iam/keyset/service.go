// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyset

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/veyra/internal/platform/apperr"
)

// # Constants

const (
	// rsaKeyBits is the modulus size for generated signing keys.
	rsaKeyBits = 2048

	// kidPrefix plus the creation instant in unix milliseconds forms the kid.
	kidPrefix = "key-"
)

// # Service

// Service orchestrates the signing-key lifecycle.
//
// # Concurrency
//
// The current key is cached behind an RWMutex; signing reads vastly outnumber
// rotations, so the hot path takes only the read lock.
type Service struct {
	repository KeyRepository
	keyExpiry  time.Duration
	logger     *slog.Logger

	mu      sync.RWMutex
	current *SigningKey
}

// NewService constructs a keyset [Service].
func NewService(repository KeyRepository, keyExpiry time.Duration, logger *slog.Logger) *Service {
	return &Service{
		repository: repository,
		keyExpiry:  keyExpiry,
		logger:     logger,
	}
}

/*
Bootstrap ensures a usable signing key exists before the authority serves traffic.

Description: Loads the newest unexpired key from storage, generating and
persisting a fresh pair when the keyset is empty or fully expired. Runs once
during startup; the process must not come up without a signing key.

Parameters:
  - context: context.Context

Returns:
  - error: Generation or persistence failures
*/
func (service *Service) Bootstrap(context context.Context) error {
	key, err := service.repository.FindCurrent(context)

	if err != nil {
		if apperr.As(err) == nil {
			return fmt.Errorf("keyset_bootstrap_lookup_failed: %w", err)
		}

		// Empty or fully expired keyset: mint the first key.
		key, err = service.generate(context)
		if err != nil {
			return err
		}
		service.logger.Info("signing_key_generated", slog.String("kid", key.Kid))
	} else {
		service.logger.Info("signing_key_loaded",
			slog.String("kid", key.Kid),
			slog.Time("expires_at", key.ExpiresAt),
		)
	}

	service.mu.Lock()
	service.current = key
	service.mu.Unlock()

	return nil
}

/*
Current returns the key to sign with, rotating transparently if the cached
key's window has closed.

Parameters:
  - context: context.Context

Returns:
  - *SigningKey: The active signing key
  - error: Rotation failures when the cached key has expired
*/
func (service *Service) Current(context context.Context) (*SigningKey, error) {
	service.mu.RLock()
	key := service.current
	service.mu.RUnlock()

	if key != nil && !key.Expired(time.Now()) {
		return key, nil
	}

	return service.Rotate(context)
}

/*
Rotate generates, persists, and activates a fresh signing key.

Description: The previous key stops signing immediately but remains in
storage and in the JWKS until its issued tokens age out, so rotation never
invalidates live credentials.

Parameters:
  - context: context.Context

Returns:
  - *SigningKey: The new active key
  - error: Generation or persistence failures
*/
func (service *Service) Rotate(context context.Context) (*SigningKey, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	// Another caller may have rotated while we waited for the lock.
	if service.current != nil && !service.current.Expired(time.Now()) {
		return service.current, nil
	}

	key, err := service.generate(context)
	if err != nil {
		return nil, err
	}

	service.logger.Info("signing_key_rotated", slog.String("kid", key.Kid))
	service.current = key
	return key, nil
}

/*
ResolvePublicKey returns the RSA public key for a kid.

Description: Serves the authority's own token verification. Expired keys
still resolve, because a token minted moments before rotation must remain
verifiable for its whole lifetime.

Parameters:
  - context: context.Context
  - kid: string

Returns:
  - *rsa.PublicKey: The verification key
  - error: apperr.NotFound for unknown kids
*/
func (service *Service) ResolvePublicKey(context context.Context, kid string) (*rsa.PublicKey, error) {

	// Fast path: the cached signing key
	service.mu.RLock()
	current := service.current
	service.mu.RUnlock()

	if current != nil && current.Kid == kid {
		return current.Public()
	}

	key, err := service.repository.FindByKid(context, kid)
	if err != nil {
		return nil, err
	}

	return key.Public()
}

// generate mints a new RSA-2048 pair and persists it.
func (service *Service) generate(context context.Context) (*SigningKey, error) {
	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("keyset_generate_failed: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keyset_marshal_public_failed: %w", err)
	}

	now := time.Now()
	key := &SigningKey{
		Kid: fmt.Sprintf("%s%d", kidPrefix, now.UnixMilli()),
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(private),
		})),
		PublicKeyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: publicDER,
		})),
		CreatedAt: now,
		ExpiresAt: now.Add(service.keyExpiry),
	}

	if err := service.repository.Save(context, key); err != nil {
		return nil, err
	}

	return key, nil
}
