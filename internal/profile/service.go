// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/sec"
	"github.com/taibuivan/veyra/internal/trust"
)

// # Service Layer

// Service orchestrates profile reads and writes.
//
// Every operation takes the calling principal and enforces the platform's
// tenant and ownership rules before touching storage.
type Service struct {
	repository Repository
	logger     *slog.Logger
}

// NewService constructs a new [Service].
func NewService(repository Repository, logger *slog.Logger) *Service {
	return &Service{repository: repository, logger: logger}
}

/*
GetOwn retrieves the calling user's profile.

Description: A user who has never written a profile still has one: the
lookup falls back to an unsaved default derived from the principal, so the
endpoint never 404s for its owner.

Parameters:
  - context: context.Context
  - principal: *sec.Principal

Returns:
  - *Profile: The owner's profile
  - error: Storage failures
*/
func (service *Service) GetOwn(context context.Context, principal *sec.Principal) (*Profile, error) {
	if principal == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	record, err := service.repository.FindByUserID(context, principal.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return service.defaultProfile(principal), nil
		}
		return nil, fmt.Errorf("profile_service_get_own_failed: %w", err)
	}

	return record, nil
}

/*
Get retrieves another user's profile on behalf of the calling principal.

Description: The profile is loaded first, then authorized against it: the
owner always passes, STAFF and ADMIN pass within their own tenant, and a
profile in a foreign tenant is reported as not found regardless of role.

Parameters:
  - context: context.Context
  - principal: *sec.Principal
  - userID: string

Returns:
  - *Profile: The requested profile
  - error: apperr.NotFound, apperr.Forbidden, or storage failures
*/
func (service *Service) Get(context context.Context, principal *sec.Principal, userID string) (*Profile, error) {
	record, err := service.repository.FindByUserID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("Profile")
		}
		return nil, fmt.Errorf("profile_service_get_failed: %w", err)
	}

	if err := trust.Authorize(principal, record.TenantID, record.UserID, sec.RoleAdmin, sec.RoleStaff); err != nil {
		return nil, err
	}

	return record, nil
}

// UpdateInput defines the mutable subset of profile fields.
type UpdateInput struct {
	DisplayName *string
	Bio         *string
}

/*
Update applies a partial set of changes to the calling user's profile.

Description: Loads the current state (or the unsaved default for a first
write), overlays the provided fields, and upserts the result.

Parameters:
  - context: context.Context
  - principal: *sec.Principal
  - input: UpdateInput

Returns:
  - *Profile: The updated profile
  - error: Storage failures
*/
func (service *Service) Update(context context.Context, principal *sec.Principal, input UpdateInput) (*Profile, error) {
	record, err := service.GetOwn(context, principal)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		record.DisplayName = *input.DisplayName
	}
	if input.Bio != nil {
		record.Bio = *input.Bio
	}
	record.UpdatedAt = time.Now()

	if err := service.repository.Upsert(context, record); err != nil {
		return nil, fmt.Errorf("profile_service_update_failed: %w", err)
	}

	service.logger.Info("profile_updated", slog.String("user_id", record.UserID))

	return record, nil
}

/*
List returns one page of profiles in the caller's tenant.

Description: Browsing other users is a back-office operation, so the caller
must hold STAFF or ADMIN. The listing is always scoped to the caller's own
tenant.

Parameters:
  - context: context.Context
  - principal: *sec.Principal
  - limit: int
  - offset: int

Returns:
  - []Profile: The requested page
  - int: Total profile count in the tenant
  - error: apperr.Forbidden or storage failures
*/
func (service *Service) List(context context.Context, principal *sec.Principal, limit, offset int) ([]Profile, int, error) {
	if err := trust.Authorize(principal, principalTenant(principal), "", sec.RoleAdmin, sec.RoleStaff); err != nil {
		return nil, 0, err
	}

	records, total, err := service.repository.ListByTenant(context, principal.TenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("profile_service_list_failed: %w", err)
	}

	return records, total, nil
}

// defaultProfile is the unsaved state a user's profile has before the first
// write. The display name falls back to the registration identifier.
func (service *Service) defaultProfile(principal *sec.Principal) *Profile {
	displayName := principal.Email
	if displayName == "" {
		displayName = principal.Phone
	}

	now := time.Now()
	return &Profile{
		UserID:      principal.UserID,
		TenantID:    principal.TenantID,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func principalTenant(principal *sec.Principal) string {
	if principal == nil {
		return ""
	}
	return principal.TenantID
}
