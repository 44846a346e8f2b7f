// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/veyra/internal/iam/auth"
	"github.com/taibuivan/veyra/internal/iam/keyset"
	"github.com/taibuivan/veyra/internal/iam/password"
	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/iam/token"
	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/constants"
	"github.com/taibuivan/veyra/internal/platform/sec"
)

// # In-Memory Store

// memoryState is the shared backing store for the repository fakes.
type memoryState struct {
	tenants map[string]*auth.Tenant
	users   []*auth.User
	grants  map[string][]sec.Role
	tokens  []*auth.RefreshToken
}

func newMemoryState() *memoryState {
	state := &memoryState{
		tenants: map[string]*auth.Tenant{},
		grants:  map[string][]sec.Role{},
	}
	state.tenants[constants.DefaultTenantID] = &auth.Tenant{
		ID:     constants.DefaultTenantID,
		Name:   "Veyra Marketplace",
		Status: auth.TenantActive,
	}
	return state
}

func (state *memoryState) repositories() auth.Repositories {
	return auth.Repositories{
		Tenants:       &memoryTenants{state: state},
		Users:         &memoryUsers{state: state},
		Roles:         &memoryGrants{state: state},
		RefreshTokens: &memoryRefreshTokens{state: state},
	}
}

// InTx satisfies auth.TxRunner; the fakes have no transaction semantics.
func (state *memoryState) InTx(_ context.Context, fn func(repos auth.Repositories) error) error {
	return fn(state.repositories())
}

type memoryTenants struct{ state *memoryState }

func (repo *memoryTenants) Create(_ context.Context, tenant *auth.Tenant) error {
	repo.state.tenants[tenant.ID] = tenant
	return nil
}

func (repo *memoryTenants) FindByID(_ context.Context, id string) (*auth.Tenant, error) {
	tenant, ok := repo.state.tenants[id]
	if !ok {
		return nil, apperr.NotFound("Tenant")
	}
	return tenant, nil
}

type memoryUsers struct{ state *memoryState }

func (repo *memoryUsers) Create(_ context.Context, user *auth.User) error {
	for _, existing := range repo.state.users {
		if existing.TenantID != user.TenantID {
			continue
		}
		if user.Email != "" && existing.Email == user.Email {
			return apperr.EmailTaken()
		}
		if user.Phone != "" && existing.Phone == user.Phone {
			return apperr.PhoneTaken()
		}
	}
	copied := *user
	repo.state.users = append(repo.state.users, &copied)
	return nil
}

func (repo *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	for _, user := range repo.state.users {
		if user.ID == id {
			hydrated := *user
			hydrated.Roles = repo.state.grants[id]
			return &hydrated, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, user := range repo.state.users {
		if user.Email == email {
			hydrated := *user
			hydrated.Roles = repo.state.grants[user.ID]
			return &hydrated, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUsers) FindByPhone(_ context.Context, phone string) (*auth.User, error) {
	for _, user := range repo.state.users {
		if user.Phone == phone {
			hydrated := *user
			hydrated.Roles = repo.state.grants[user.ID]
			return &hydrated, nil
		}
	}
	return nil, apperr.NotFound("User")
}

type memoryGrants struct{ state *memoryState }

func (repo *memoryGrants) Grant(_ context.Context, userID string, role sec.Role) error {
	for _, held := range repo.state.grants[userID] {
		if held == role {
			return nil
		}
	}
	repo.state.grants[userID] = append(repo.state.grants[userID], role)
	return nil
}

func (repo *memoryGrants) FindRoles(_ context.Context, userID string) ([]sec.Role, error) {
	return repo.state.grants[userID], nil
}

type memoryRefreshTokens struct{ state *memoryState }

func (repo *memoryRefreshTokens) Create(_ context.Context, record *auth.RefreshToken) error {
	copied := *record
	repo.state.tokens = append(repo.state.tokens, &copied)
	return nil
}

func (repo *memoryRefreshTokens) FindByTokenHash(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	for _, record := range repo.state.tokens {
		if record.TokenHash == tokenHash {
			return record, nil
		}
	}
	return nil, apperr.NotFound("Refresh token")
}

func (repo *memoryRefreshTokens) Revoke(_ context.Context, tokenID string) error {
	for _, record := range repo.state.tokens {
		if record.ID == tokenID {
			record.IsRevoked = true
		}
	}
	return nil
}

func (repo *memoryRefreshTokens) RevokeAllForUser(_ context.Context, userID string) error {
	for _, record := range repo.state.tokens {
		if record.UserID == userID {
			record.IsRevoked = true
		}
	}
	return nil
}

func (repo *memoryRefreshTokens) DeleteExpired(_ context.Context) error { return nil }

// # Fixture

type fixture struct {
	service *auth.Service
	state   *memoryState
	revoker *revocation.Index
}

// fixedKeySource and mapResolver pin token operations to one test key.
type fixedKeySource struct{ key *keyset.SigningKey }

func (source *fixedKeySource) Current(_ context.Context) (*keyset.SigningKey, error) {
	return source.key, nil
}

type mapResolver struct{ keys map[string]*rsa.PublicKey }

func (resolver *mapResolver) ResolvePublicKey(_ context.Context, kid string) (*rsa.PublicKey, error) {
	public, ok := resolver.keys[kid]
	if !ok {
		return nil, token.ErrUnknownKid
	}
	return public, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	publicDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	require.NoError(t, err)

	now := time.Now()
	key := &keyset.SigningKey{
		Kid: "key-test",
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(private),
		})),
		PublicKeyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: publicDER,
		})),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	// Weak KDF parameters keep the suite fast; production values come from config.
	hasher, err := password.NewHasher("test-pepper", password.Params{
		Iterations:  1,
		MemoryKiB:   8 * 1024,
		Parallelism: 1,
		SaltLength:  16,
		HashLength:  32,
	})
	require.NoError(t, err)

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.DiscardHandler)
	revoker := revocation.NewIndex(client, 200*time.Millisecond, false, logger)

	resolver := &mapResolver{keys: map[string]*rsa.PublicKey{"key-test": &private.PublicKey}}
	state := newMemoryState()

	service := auth.NewService(auth.ServiceParams{
		Repositories:    state.repositories(),
		Tx:              state,
		Hasher:          hasher,
		Minter:          token.NewMinter(&fixedKeySource{key: key}, constants.AuthIssuer),
		Verifier:        token.NewVerifier(resolver, constants.AuthIssuer),
		Revoker:         revoker,
		AccessTokenTTL:  2 * time.Hour,
		RefreshTokenTTL: 720 * time.Hour,
		Logger:          logger,
	})

	return &fixture{service: service, state: state, revoker: revoker}
}

// # Registration

/*
TestService_Register_Customer verifies that customers land in the default
marketplace tenant with a full credential pair.
*/
func TestService_Register_Customer(t *testing.T) {
	fix := newFixture(t)

	session, err := fix.service.Register(context.Background(), auth.RegisterInput{
		Email:    "a@b.com",
		Password: "hunter22X",
		Role:     sec.RoleCustomer,
	})
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultTenantID, session.User.TenantID)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, []sec.Role{sec.RoleCustomer}, session.User.Roles)
	assert.True(t, session.User.Enabled)

	// The first session handle is persisted alongside the account.
	require.Len(t, fix.state.tokens, 1)
	assert.Equal(t, session.User.ID, fix.state.tokens[0].UserID)
}

/*
TestService_Register_SellerCreatesTenant verifies that seller
self-registration provisions a dedicated tenant named after the registrant.
*/
func TestService_Register_SellerCreatesTenant(t *testing.T) {
	fix := newFixture(t)

	session, err := fix.service.Register(context.Background(), auth.RegisterInput{
		Email:    "shop@b.com",
		Password: "hunter22X",
		Role:     sec.RoleSeller,
	})
	require.NoError(t, err)

	assert.NotEqual(t, constants.DefaultTenantID, session.User.TenantID)

	tenant := fix.state.tenants[session.User.TenantID]
	require.NotNil(t, tenant)
	assert.Equal(t, "Seller: shop@b.com", tenant.Name)
	assert.Equal(t, auth.TenantActive, tenant.Status)
}

/*
TestService_Register_DuplicateEmail verifies tenant-scoped uniqueness: the
same email conflicts within one tenant but registers fine under another.
*/
func TestService_Register_DuplicateEmail(t *testing.T) {
	fix := newFixture(t)

	_, err := fix.service.Register(context.Background(), auth.RegisterInput{
		Email: "a@b.com", Password: "hunter22X", Role: sec.RoleCustomer,
	})
	require.NoError(t, err)

	_, err = fix.service.Register(context.Background(), auth.RegisterInput{
		Email: "a@b.com", Password: "hunter22X", Role: sec.RoleCustomer,
	})
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "EMAIL_TAKEN", appError.Code)

	// The same email under a fresh seller tenant is a different identity.
	_, err = fix.service.Register(context.Background(), auth.RegisterInput{
		Email: "a@b.com", Password: "hunter22X", Role: sec.RoleSeller,
	})
	assert.NoError(t, err)
}

/*
TestService_Register_TenantResolution verifies the explicit-tenant and
role-without-tenant failure paths.
*/
func TestService_Register_TenantResolution(t *testing.T) {
	fix := newFixture(t)

	// Unknown explicit tenant
	_, err := fix.service.Register(context.Background(), auth.RegisterInput{
		Email: "a@b.com", Password: "hunter22X", Role: sec.RoleCustomer,
		TenantID: "11111111-1111-1111-1111-111111111111",
	})
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)

	// Staff cannot self-register without naming a tenant
	_, err = fix.service.Register(context.Background(), auth.RegisterInput{
		Email: "staff@b.com", Password: "hunter22X", Role: sec.RoleStaff,
	})
	appError = apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "TENANT_REQUIRED", appError.Code)
}

// # Login

func registerCustomer(t *testing.T, fix *fixture, email string) *auth.Session {
	t.Helper()
	session, err := fix.service.Register(context.Background(), auth.RegisterInput{
		Email: email, Password: "hunter22X", Role: sec.RoleCustomer,
	})
	require.NoError(t, err)
	return session
}

/*
TestService_Login verifies the credential checks: success, wrong password,
unknown identifier, and disabled account all behave per the enumeration
defense (one generic 401).
*/
func TestService_Login(t *testing.T) {
	fix := newFixture(t)
	registerCustomer(t, fix, "a@b.com")

	t.Run("success", func(t *testing.T) {
		session, err := fix.service.Login(context.Background(), auth.LoginInput{
			Email: "a@b.com", Password: "hunter22X",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, session.AccessToken)
		assert.Equal(t, []sec.Role{sec.RoleCustomer}, session.User.Roles)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := fix.service.Login(context.Background(), auth.LoginInput{
			Email: "a@b.com", Password: "wrong-password",
		})
		requireBadCredentials(t, err)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := fix.service.Login(context.Background(), auth.LoginInput{
			Email: "nobody@b.com", Password: "hunter22X",
		})
		requireBadCredentials(t, err)
	})

	t.Run("disabled account", func(t *testing.T) {
		for _, user := range fix.state.users {
			user.Enabled = false
		}
		defer func() {
			for _, user := range fix.state.users {
				user.Enabled = true
			}
		}()

		_, err := fix.service.Login(context.Background(), auth.LoginInput{
			Email: "a@b.com", Password: "hunter22X",
		})
		requireBadCredentials(t, err)
	})
}

func requireBadCredentials(t *testing.T, err error) {
	t.Helper()
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 401, appError.HTTPStatus)
}

// # Refresh

/*
TestService_Refresh verifies the refresh flow: a live handle mints a new
access token, dead handles are rejected, and the advisory access-token
cross-check catches mismatched subjects while ignoring garbage.
*/
func TestService_Refresh(t *testing.T) {
	fix := newFixture(t)
	session := registerCustomer(t, fix, "a@b.com")

	t.Run("success", func(t *testing.T) {
		result, err := fix.service.Refresh(context.Background(), auth.RefreshInput{
			RefreshToken: session.RefreshToken,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEqual(t, session.AccessClaims.ID, result.AccessClaims.ID)
	})

	t.Run("matching access token accepted", func(t *testing.T) {
		_, err := fix.service.Refresh(context.Background(), auth.RefreshInput{
			RefreshToken: session.RefreshToken,
			AccessToken:  session.AccessToken,
		})
		assert.NoError(t, err)
	})

	t.Run("mismatched access token rejected", func(t *testing.T) {
		other := registerCustomer(t, fix, "other@b.com")
		_, err := fix.service.Refresh(context.Background(), auth.RefreshInput{
			RefreshToken: session.RefreshToken,
			AccessToken:  other.AccessToken,
		})
		requireBadCredentials(t, err)
	})

	t.Run("undecodable access token ignored", func(t *testing.T) {
		_, err := fix.service.Refresh(context.Background(), auth.RefreshInput{
			RefreshToken: session.RefreshToken,
			AccessToken:  "not-a-jwt",
		})
		assert.NoError(t, err)
	})

	t.Run("unknown handle", func(t *testing.T) {
		_, err := fix.service.Refresh(context.Background(), auth.RefreshInput{
			RefreshToken: "never-issued",
		})
		requireBadCredentials(t, err)
	})

	t.Run("expired handle", func(t *testing.T) {
		fix.state.tokens[0].ExpiresAt = time.Now().Add(-time.Minute)
		defer func() { fix.state.tokens[0].ExpiresAt = time.Now().Add(time.Hour) }()

		_, err := fix.service.Refresh(context.Background(), auth.RefreshInput{
			RefreshToken: session.RefreshToken,
		})
		requireBadCredentials(t, err)
	})
}

// # Logout

/*
TestService_Logout verifies single-session termination: the handle is
revoked, the access token's jti lands on the blacklist, and a second
logout with the same pair is rejected.
*/
func TestService_Logout(t *testing.T) {
	fix := newFixture(t)
	session := registerCustomer(t, fix, "a@b.com")
	ctx := context.Background()

	require.NoError(t, fix.service.Logout(ctx, session.AccessToken, session.RefreshToken))

	assert.True(t, fix.state.tokens[0].IsRevoked)

	blacklisted, err := fix.revoker.IsTokenRevoked(ctx, session.AccessClaims.ID)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	// Replaying the logout hits the already-revoked handle.
	requireBadCredentials(t, fix.service.Logout(ctx, session.AccessToken, session.RefreshToken))
}

/*
TestService_Logout_Mismatch verifies that a refresh token belonging to a
different user cannot be revoked with someone else's access token.
*/
func TestService_Logout_Mismatch(t *testing.T) {
	fix := newFixture(t)
	alice := registerCustomer(t, fix, "alice@b.com")
	mallory := registerCustomer(t, fix, "mallory@b.com")

	err := fix.service.Logout(context.Background(), mallory.AccessToken, alice.RefreshToken)
	requireBadCredentials(t, err)

	// Alice's session survives the attempt.
	assert.False(t, fix.state.tokens[0].IsRevoked)
}

// # LogoutAll

/*
TestService_LogoutAll verifies the compromise-response flow: all handles
revoked, epoch set so pre-logout access tokens are rejected, and the
calling token blacklisted.
*/
func TestService_LogoutAll(t *testing.T) {
	fix := newFixture(t)
	first := registerCustomer(t, fix, "a@b.com")
	ctx := context.Background()

	// Two more parallel sessions
	second, err := fix.service.Login(ctx, auth.LoginInput{Email: "a@b.com", Password: "hunter22X"})
	require.NoError(t, err)
	third, err := fix.service.Login(ctx, auth.LoginInput{Email: "a@b.com", Password: "hunter22X"})
	require.NoError(t, err)

	require.NoError(t, fix.service.LogoutAll(ctx, first.AccessToken))

	// Every refresh handle is dead.
	for _, record := range fix.state.tokens {
		assert.True(t, record.IsRevoked)
	}
	for _, session := range []*auth.Session{first, second, third} {
		_, err := fix.service.Refresh(ctx, auth.RefreshInput{RefreshToken: session.RefreshToken})
		requireBadCredentials(t, err)
	}

	// Pre-logout access tokens are caught by the epoch.
	for _, session := range []*auth.Session{second, third} {
		revoked, err := fix.revoker.IsRevoked(ctx, session.AccessClaims.ID, session.User.ID, session.AccessClaims.IssuedAt.Time)
		require.NoError(t, err)
		assert.True(t, revoked)
	}

	// The calling token is on the blacklist explicitly.
	blacklisted, err := fix.revoker.IsTokenRevoked(ctx, first.AccessClaims.ID)
	require.NoError(t, err)
	assert.True(t, blacklisted)
}

/*
TestService_Logout_InvalidAccessToken verifies that logout requires a
verifiable access token.
*/
func TestService_Logout_InvalidAccessToken(t *testing.T) {
	fix := newFixture(t)
	session := registerCustomer(t, fix, "a@b.com")

	err := fix.service.Logout(context.Background(), strings.Repeat("x", 32), session.RefreshToken)
	requireBadCredentials(t, err)
}
