// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package password implements credential hashing for the identity authority.

It wraps the Argon2id key derivation function with the platform's peppering
scheme and provides the deterministic digest used to index refresh tokens.

Architecture:

  - Hasher: Stateless service carrying the process pepper and KDF parameters.
  - Encoding: Hashes are stored in the standard PHC string format so the
    parameters used at hash time travel with the hash itself.
  - Pepper: A process-wide secret concatenated into the KDF input. A stolen
    database is not crackable without it.

Verification always replays the parameters recorded in the stored hash, so
operators can strengthen the KDF settings without invalidating existing
credentials.
*/
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/taibuivan/veyra/internal/platform/apperr"
)

// # Parameter Bounds

const (
	// MinSaltLength and MaxSaltLength bound the per-user salt size in bytes.
	MinSaltLength = 8
	MaxSaltLength = 64

	// DefaultSaltLength is used when configuration does not say otherwise.
	DefaultSaltLength = 32

	// MinHashLength and MaxHashLength bound the derived key size in bytes.
	MinHashLength = 16
	MaxHashLength = 64

	// DefaultHashLength is used when configuration does not say otherwise.
	DefaultHashLength = 32
)

// Params holds the Argon2id tuning knobs.
type Params struct {
	Iterations  uint32
	MemoryKiB   uint32
	Parallelism uint8
	SaltLength  int
	HashLength  int
}

// Hasher derives and verifies password hashes.
//
// # Concurrency
//
// Hasher is immutable after construction and safe for concurrent use.
type Hasher struct {
	pepper string
	params Params
}

// NewHasher constructs a [Hasher], clamping salt and hash lengths into their
// allowed bounds and substituting defaults for zero values.
func NewHasher(pepper string, params Params) (*Hasher, error) {
	if pepper == "" {
		return nil, fmt.Errorf("password: pepper must not be empty")
	}

	if params.SaltLength == 0 {
		params.SaltLength = DefaultSaltLength
	}
	if params.SaltLength < MinSaltLength {
		params.SaltLength = MinSaltLength
	}
	if params.SaltLength > MaxSaltLength {
		params.SaltLength = MaxSaltLength
	}

	if params.HashLength == 0 {
		params.HashLength = DefaultHashLength
	}
	if params.HashLength < MinHashLength {
		params.HashLength = MinHashLength
	}
	if params.HashLength > MaxHashLength {
		params.HashLength = MaxHashLength
	}

	if params.Iterations == 0 {
		params.Iterations = 3
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = 64 * 1024
	}
	if params.Parallelism == 0 {
		params.Parallelism = 2
	}

	return &Hasher{pepper: pepper, params: params}, nil
}

// # Password Hashing

/*
Hash derives an Argon2id hash for the given password under a fresh salt.

Description: The KDF input is the concatenation password+pepper+saltB64, so
neither the database contents nor the salt alone are sufficient to mount an
offline attack.

Parameters:
  - plainTextPassword: string

Returns:
  - string: The PHC-encoded hash ($argon2id$v=19$m=..,t=..,p=..$salt$hash)
  - string: The standalone base64 salt (persisted in its own column)
  - error: apperr.ValidationError on empty input, or entropy failures
*/
func (hasher *Hasher) Hash(plainTextPassword string) (string, string, error) {

	// An empty password must never produce a usable credential, even when
	// a caller skips its own input validation.
	if plainTextPassword == "" {
		return "", "", apperr.ValidationError("Password must not be empty")
	}

	// Generate the per-credential salt
	salt := make([]byte, hasher.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("password: failed to generate salt: %w", err)
	}

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	derived := hasher.derive(plainTextPassword, salt, saltB64, hasher.params)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hasher.params.MemoryKiB,
		hasher.params.Iterations,
		hasher.params.Parallelism,
		saltB64,
		base64.RawStdEncoding.EncodeToString(derived),
	)

	return encoded, saltB64, nil
}

/*
Verify replays a stored hash against a candidate password.

Description: Parameters and salt are taken from the stored PHC string, so a
hash created under older KDF settings still verifies. Comparison is
constant-time.

Parameters:
  - plainTextPassword: string
  - encodedHash: string (PHC format, as produced by Hash)

Returns:
  - bool: true when the password matches
*/
func (hasher *Hasher) Verify(plainTextPassword, encodedHash string) bool {
	params, salt, want, err := decodeHash(encodedHash)
	if err != nil {
		return false
	}

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	got := hasher.derive(plainTextPassword, salt, saltB64, params)

	return subtle.ConstantTimeCompare(got, want) == 1
}

// derive runs Argon2id over the peppered input with the given parameters.
func (hasher *Hasher) derive(password string, salt []byte, saltB64 string, params Params) []byte {
	input := password + hasher.pepper + saltB64
	return argon2.IDKey(
		[]byte(input),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(params.HashLength),
	)
}

// # Token Digests

// HashToken produces the deterministic digest under which refresh tokens are
// stored and looked up: base64(SHA-256(token + pepper)).
//
// Unlike password hashing this must be deterministic, because the digest is
// the lookup key for the token row.
func (hasher *Hasher) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token + hasher.pepper))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// # Encoding Internals

// decodeHash parses a PHC-encoded Argon2id hash into its parts.
func decodeHash(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Params{}, nil, nil, fmt.Errorf("password: malformed hash encoding")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, fmt.Errorf("password: malformed version segment: %w", err)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, fmt.Errorf("password: unsupported argon2 version %d", version)
	}

	params := Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.MemoryKiB, &params.Iterations, &params.Parallelism); err != nil {
		return Params{}, nil, nil, fmt.Errorf("password: malformed parameter segment: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("password: malformed salt segment: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("password: malformed hash segment: %w", err)
	}
	params.HashLength = len(hash)

	return params, salt, hash, nil
}
