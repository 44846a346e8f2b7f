// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package trust

import (
	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/sec"
)

/*
Authorize decides whether a principal may act on a resource.

Description: Handlers call this at entry with the resource's identity.
Tenant isolation is applied BEFORE any role consideration: a cross-tenant
request gets NotFound, never Forbidden, so the response does not reveal
that the resource exists. Within the tenant, the owner may always act;
anyone else needs one of the elevated roles.

Parameters:
  - principal: *sec.Principal (nil means unauthenticated)
  - resourceTenantID: string
  - resourceOwnerID: string (empty when the resource has no owner)
  - elevated: ...sec.Role (roles that may act on resources they do not own)

Returns:
  - error: nil on allow; apperr.Unauthorized, NotFound, or Forbidden otherwise
*/
func Authorize(principal *sec.Principal, resourceTenantID, resourceOwnerID string, elevated ...sec.Role) error {
	if principal == nil {
		return apperr.Unauthorized("Authentication required")
	}

	if principal.TenantID != resourceTenantID {
		return apperr.NotFound("Resource")
	}

	if resourceOwnerID != "" && principal.UserID == resourceOwnerID {
		return nil
	}

	if principal.HasAnyRole(elevated...) {
		return nil
	}

	return apperr.Forbidden("You do not have access to this resource")
}
