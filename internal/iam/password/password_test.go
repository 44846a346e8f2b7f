// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/veyra/internal/iam/password"
	"github.com/taibuivan/veyra/internal/platform/apperr"
)

// fast parameters so the test suite doesn't burn CPU on real KDF settings
func testHasher(t *testing.T, pepper string) *password.Hasher {
	t.Helper()
	hasher, err := password.NewHasher(pepper, password.Params{
		Iterations:  1,
		MemoryKiB:   8 * 1024,
		Parallelism: 1,
	})
	require.NoError(t, err)
	return hasher
}

/*
TestHasher_HashAndVerify verifies the round trip and rejection of wrong passwords.
*/
func TestHasher_HashAndVerify(t *testing.T) {
	hasher := testHasher(t, "test-pepper")

	encoded, saltB64, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, saltB64)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	// 1. The right password verifies
	assert.True(t, hasher.Verify("correct horse battery staple", encoded))

	// 2. A wrong password does not
	assert.False(t, hasher.Verify("correct horse battery stapler", encoded))

	// 3. Garbage input does not panic and does not verify
	assert.False(t, hasher.Verify("anything", "not-a-hash"))
	assert.False(t, hasher.Verify("anything", ""))
}

/*
TestHasher_RejectsEmptyPassword verifies that an empty password never
derives a credential, independent of transport-level validation.
*/
func TestHasher_RejectsEmptyPassword(t *testing.T) {
	hasher := testHasher(t, "test-pepper")

	encoded, saltB64, err := hasher.Hash("")
	require.Error(t, err)
	assert.Empty(t, encoded)
	assert.Empty(t, saltB64)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
}

/*
TestHasher_SaltUniqueness verifies that two hashes of the same password differ.
*/
func TestHasher_SaltUniqueness(t *testing.T) {
	hasher := testHasher(t, "test-pepper")

	first, firstSalt, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, secondSalt, err := hasher.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, firstSalt, secondSalt)
}

/*
TestHasher_PepperBindsHash verifies that a hash cannot be verified under a
different pepper.
*/
func TestHasher_PepperBindsHash(t *testing.T) {
	hasher := testHasher(t, "pepper-one")
	other := testHasher(t, "pepper-two")

	encoded, _, err := hasher.Hash("secret")
	require.NoError(t, err)

	assert.True(t, hasher.Verify("secret", encoded))
	assert.False(t, other.Verify("secret", encoded))
}

/*
TestHasher_VerifyOldParameters verifies that a hash created under weaker KDF
settings still verifies after the service is reconfigured, because the
parameters recorded in the stored hash win.
*/
func TestHasher_VerifyOldParameters(t *testing.T) {
	old, err := password.NewHasher("shared-pepper", password.Params{
		Iterations:  1,
		MemoryKiB:   8 * 1024,
		Parallelism: 1,
		HashLength:  16,
	})
	require.NoError(t, err)

	encoded, _, err := old.Hash("secret")
	require.NoError(t, err)

	upgraded, err := password.NewHasher("shared-pepper", password.Params{
		Iterations:  2,
		MemoryKiB:   16 * 1024,
		Parallelism: 2,
		HashLength:  32,
	})
	require.NoError(t, err)

	assert.True(t, upgraded.Verify("secret", encoded))
}

/*
TestNewHasher_Bounds verifies clamping of salt and hash lengths and the
mandatory pepper.
*/
func TestNewHasher_Bounds(t *testing.T) {

	// 1. Pepper is mandatory
	_, err := password.NewHasher("", password.Params{})
	assert.Error(t, err)

	// 2. Out-of-bounds lengths are clamped, not rejected
	hasher, err := password.NewHasher("pepper", password.Params{
		Iterations:  1,
		MemoryKiB:   8 * 1024,
		Parallelism: 1,
		SaltLength:  4,   // below minimum, clamped to 8
		HashLength:  200, // above maximum, clamped to 64
	})
	require.NoError(t, err)

	encoded, _, err := hasher.Hash("secret")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("secret", encoded))
}

/*
TestHasher_HashToken verifies determinism and pepper binding of token digests.
*/
func TestHasher_HashToken(t *testing.T) {
	hasher := testHasher(t, "pepper-one")
	other := testHasher(t, "pepper-two")

	// 1. Deterministic: same token, same digest
	assert.Equal(t, hasher.HashToken("refresh-abc"), hasher.HashToken("refresh-abc"))

	// 2. Different tokens diverge
	assert.NotEqual(t, hasher.HashToken("refresh-abc"), hasher.HashToken("refresh-abd"))

	// 3. Pepper participates in the digest
	assert.NotEqual(t, hasher.HashToken("refresh-abc"), other.HashToken("refresh-abc"))
}
