// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/veyra/internal/iam/password"
	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/iam/token"
	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/constants"
	"github.com/taibuivan/veyra/internal/platform/sec"
	"github.com/taibuivan/veyra/pkg/uuid"
)

// # Service

// Service orchestrates the five credential flows.
//
// # Review Process
//
// This service is critical for security. Any changes to registration,
// login, or revocation logic must be reviewed by the security team.
type Service struct {
	repositories Repositories
	tx           TxRunner
	hasher       *password.Hasher
	minter       *token.Minter
	verifier     *token.Verifier
	revoker      *revocation.Index
	accessTTL    time.Duration
	refreshTTL   time.Duration
	logger       *slog.Logger
}

// ServiceParams bundles the dependencies of [NewService].
type ServiceParams struct {
	Repositories    Repositories
	Tx              TxRunner
	Hasher          *password.Hasher
	Minter          *token.Minter
	Verifier        *token.Verifier
	Revoker         *revocation.Index
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Logger          *slog.Logger
}

// NewService constructs the credential orchestrator.
func NewService(params ServiceParams) *Service {
	return &Service{
		repositories: params.Repositories,
		tx:           params.Tx,
		hasher:       params.Hasher,
		minter:       params.Minter,
		verifier:     params.Verifier,
		revoker:      params.Revoker,
		accessTTL:    params.AccessTokenTTL,
		refreshTTL:   params.RefreshTokenTTL,
		logger:       params.Logger,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Email    string
	Phone    string
	Password string
	TenantID string // Optional explicit tenant; resolved by role when empty.
	Role     sec.Role
}

// Session represents a successfully established credential pair.
type Session struct {
	AccessToken      string
	AccessClaims     *token.AccessClaims
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *User
}

/*
Register enrolls a new account and logs it in.

Description: Resolves the target tenant by role (customers join the default
marketplace tenant, sellers get a tenant of their own, other roles must name
one), hashes the password, and persists tenant, account, role grant, and the
first session atomically. Token minting happens inside the transaction; a
minting failure rolls everything back.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Session: Credential pair plus the created account
  - error: EmailTaken/PhoneTaken, InvalidTenant, TenantRequired, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Session, error) {

	// The KDF call is CPU-heavy (hundreds of ms); run it before opening the
	// transaction so it never holds a connection hostage.
	encodedHash, salt, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	var session *Session
	err = service.tx.InTx(context, func(repos Repositories) error {
		tenantID, err := service.resolveTenant(context, repos, input)
		if err != nil {
			return err
		}

		// Time-sortable ID to prevent PG index fragmentation.
		user := &User{
			ID:           uuid.New(),
			TenantID:     tenantID,
			Email:        input.Email,
			Phone:        input.Phone,
			PasswordHash: encodedHash,
			PasswordSalt: salt,
			Enabled:      true,
			Roles:        []sec.Role{input.Role},
		}

		if err := repos.Users.Create(context, user); err != nil {
			return err
		}

		if err := repos.Roles.Grant(context, user.ID, input.Role); err != nil {
			return err
		}

		session, err = service.issueSession(context, repos, user)
		return err
	})

	if err != nil {
		return nil, err
	}

	service.logger.Info("user_registered",
		slog.String("user_id", session.User.ID),
		slog.String("tenant_id", session.User.TenantID),
		slog.String("role", string(input.Role)),
	)

	return session, nil
}

// resolveTenant decides which tenant the new account belongs to.
func (service *Service) resolveTenant(context context.Context, repos Repositories, input RegisterInput) (string, error) {

	// Explicit tenant: must exist and be active, whatever the role.
	if input.TenantID != "" {
		tenant, err := repos.Tenants.FindByID(context, input.TenantID)
		if err != nil {
			return "", apperr.InvalidTenant("Unknown tenant")
		}
		if tenant.Status != TenantActive {
			return "", apperr.InvalidTenant("Tenant is not active")
		}
		return tenant.ID, nil
	}

	switch input.Role {
	case sec.RoleCustomer:
		// The default marketplace tenant is seeded by migration.
		return constants.DefaultTenantID, nil

	case sec.RoleSeller:
		identifier := input.Email
		if identifier == "" {
			identifier = input.Phone
		}
		tenant := &Tenant{
			ID:     uuid.New(),
			Name:   SellerTenantPrefix + identifier,
			Status: TenantActive,
		}
		if err := repos.Tenants.Create(context, tenant); err != nil {
			return "", err
		}
		return tenant.ID, nil

	default:
		// Staff, admin, and driver accounts are provisioned into an existing
		// tenant, never self-registered into a fresh one.
		return "", apperr.TenantRequired()
	}
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Phone    string
	Password string
}

/*
Login validates credentials and issues a fresh token pair.

Description: Looks the account up by whichever identifier is present,
verifies the password in constant time, and mints access plus refresh
tokens. Every precondition failure surfaces as the same BadCredentials
to prevent account enumeration.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Credential pair plus the account
  - error: BadCredentials or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Session, error) {
	var user *User
	var err error

	if input.Email != "" {
		user, err = service.repositories.Users.FindByEmail(context, input.Email)
	} else {
		user, err = service.repositories.Users.FindByPhone(context, input.Phone)
	}

	// Unknown identifier. Generic message to prevent enumeration.
	if err != nil {
		return nil, apperr.BadCredentials()
	}

	if !user.Enabled {
		return nil, apperr.BadCredentials()
	}

	// Constant-time comparison inside Verify prevents timing attacks.
	if !service.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, apperr.BadCredentials()
	}

	session, err := service.issueSession(context, service.repositories, user)
	if err != nil {
		return nil, err
	}

	service.logger.Info("user_logged_in", slog.String("user_id", user.ID))
	return session, nil
}

// issueSession mints an access token and persists a new refresh token.
func (service *Service) issueSession(context context.Context, repos Repositories, user *User) (*Session, error) {
	accessToken, claims, err := service.minter.Mint(context, token.MintInput{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Roles:    user.RoleStrings(),
		Email:    user.Email,
		Phone:    user.Phone,
		TTL:      service.accessTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("auth_service_mint_failed: %w", err)
	}

	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	expiresAt := time.Now().Add(service.refreshTTL)
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: service.hasher.HashToken(refreshToken),
		ExpiresAt: expiresAt,
		IsRevoked: false,
	}

	if err := repos.RefreshTokens.Create(context, record); err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	return &Session{
		AccessToken:      accessToken,
		AccessClaims:     claims,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: expiresAt,
		User:             user,
	}, nil
}

// # Session Management

// RefreshInput carries the session handle plus the optional held access token.
type RefreshInput struct {
	RefreshToken string
	AccessToken  string // Optional; cross-checked when parseable.
}

// RefreshResult is a freshly minted access token.
type RefreshResult struct {
	AccessToken  string
	AccessClaims *token.AccessClaims
}

/*
Refresh mints a new access token from a live refresh token.

Description: The refresh token is NOT rotated; it stays a long-lived session
handle. When the caller also presents its current access token, the subject
must match the refresh token's user. A malformed or expired access token is
ignored, since refreshing an expired token is the expected case.

Parameters:
  - context: context.Context
  - input: RefreshInput

Returns:
  - *RefreshResult: New access token
  - error: BadCredentials or internal failures
*/
func (service *Service) Refresh(context context.Context, input RefreshInput) (*RefreshResult, error) {
	tokenHash := service.hasher.HashToken(input.RefreshToken)

	record, err := service.repositories.RefreshTokens.FindByTokenHash(context, tokenHash)
	if err != nil {
		return nil, apperr.BadCredentials()
	}

	if !record.Active(time.Now()) {
		return nil, apperr.BadCredentials()
	}

	user, err := service.repositories.Users.FindByID(context, record.UserID)
	if err != nil || !user.Enabled {
		return nil, apperr.BadCredentials()
	}

	// Advisory cross-check: a decodable access token must belong to the
	// same user as the refresh token.
	if input.AccessToken != "" {
		if held, parseErr := token.ParseUnverified(input.AccessToken); parseErr == nil {
			if held.Subject != record.UserID {
				return nil, apperr.BadCredentials()
			}
		}
	}

	accessToken, claims, err := service.minter.Mint(context, token.MintInput{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Roles:    user.RoleStrings(),
		Email:    user.Email,
		Phone:    user.Phone,
		TTL:      service.accessTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_mint_failed: %w", err)
	}

	return &RefreshResult{AccessToken: accessToken, AccessClaims: claims}, nil
}

// # Revocation Flows

/*
Logout terminates one session: the refresh token is revoked and the access
token is blacklisted for its remaining lifetime.

Description: Both credentials are required and must belong to the same user.
The blacklist write fails closed; a logout that could not reach the
revocation store reports failure rather than pretending the token is dead.

Parameters:
  - context: context.Context
  - accessToken: string
  - refreshToken: string

Returns:
  - error: BadCredentials or revocation-store failures
*/
func (service *Service) Logout(context context.Context, accessToken, refreshToken string) error {
	claims, err := service.verifier.Verify(context, accessToken)
	if err != nil {
		return apperr.BadCredentials()
	}

	record, err := service.repositories.RefreshTokens.FindByTokenHash(context, service.hasher.HashToken(refreshToken))
	if err != nil {
		return apperr.BadCredentials()
	}

	if record.UserID != claims.Subject {
		return apperr.BadCredentials()
	}

	if record.IsRevoked {
		return apperr.BadCredentials()
	}

	if err := service.repositories.RefreshTokens.Revoke(context, record.ID); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	if err := service.revoker.BlacklistToken(context, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return err
	}

	service.logger.Info("user_logged_out", slog.String("user_id", claims.Subject))
	return nil
}

/*
LogoutAll terminates every session the user holds.

Description: Revokes all persisted refresh tokens, sets the user's
revocation epoch so every access token issued before this instant is
rejected by the validators, and blacklists the calling token explicitly.

Parameters:
  - context: context.Context
  - accessToken: string (the caller's verified credential)

Returns:
  - error: BadCredentials or revocation-store failures
*/
func (service *Service) LogoutAll(context context.Context, accessToken string) error {
	claims, err := service.verifier.Verify(context, accessToken)
	if err != nil {
		return apperr.BadCredentials()
	}

	if err := service.repositories.RefreshTokens.RevokeAllForUser(context, claims.Subject); err != nil {
		return fmt.Errorf("auth_service_logout_all_failed: %w", err)
	}

	// The epoch outlives the longest credential that can be caught by it.
	if err := service.revoker.SetUserEpoch(context, claims.Subject, time.Now(), service.refreshTTL); err != nil {
		return err
	}

	if err := service.revoker.BlacklistToken(context, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return err
	}

	service.logger.Info("user_logged_out_everywhere", slog.String("user_id", claims.Subject))
	return nil
}
