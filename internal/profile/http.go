// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/veyra/internal/platform/request"
	"github.com/taibuivan/veyra/internal/platform/respond"
	"github.com/taibuivan/veyra/internal/platform/validate"
	"github.com/taibuivan/veyra/pkg/pagination"
)

// Handler implements the HTTP layer for profile management.
type Handler struct {
	profileService *Service
}

// NewHandler constructs a new profile [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{profileService: service}
}

// Routes returns a [chi.Router] with the profile domain's endpoints.
//
// All routes assume an authenticated principal; the router is mounted
// behind the trust kernel's RequirePrincipal middleware.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/me", handler.getMe)
	router.Patch("/me", handler.updateMe)
	router.Get("/", handler.list)
	router.Get("/{userID}", handler.get)

	return router
}

// # Profile Endpoints

/*
GET /api/v1/profile/me.

Description: Retrieves the authenticated user's own profile.

Response:
  - 200: Profile: The caller's profile
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.profileService.GetOwn(request.Context(), principal)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, record)
}

// updateMeRequest defines the expected JSON payload for profile updates.
type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

/*
PATCH /api/v1/profile/me.

Description: Applies partial updates to the authenticated user's profile.

Request:
  - body: updateMeRequest (Partial JSON)

Response:
  - 200: Profile: The updated profile
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.DisplayName != nil {
		v.MinLen("display_name", *input.DisplayName, 2).MaxLen("display_name", *input.DisplayName, 50)
	}
	if input.Bio != nil {
		v.MaxLen("bio", *input.Bio, 500)
	}
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.profileService.Update(request.Context(), principal, UpdateInput{
		DisplayName: input.DisplayName,
		Bio:         input.Bio,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, record)
}

/*
GET /api/v1/profile/{userID}.

Description: Retrieves another user's profile. The owner always passes;
STAFF and ADMIN may read any profile inside their own tenant. Profiles in
other tenants are reported as not found.

Request:
  - userID: string (UUID)

Response:
  - 200: Profile: The requested profile
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: Caller lacks an elevated role
  - 404: ErrNotFound: No such profile visible to the caller
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID := requestutil.ID(request, "userID")
	v := &validate.Validator{}
	v.UUID("userID", userID)
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.profileService.Get(request.Context(), principal, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, record)
}

/*
GET /api/v1/profile.

Description: Lists profiles in the caller's tenant for back-office review.
Requires STAFF or ADMIN.

Request:
  - page, limit: int (Query parameters)

Response:
  - 200: []Profile: One page plus pagination metadata
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: Caller lacks an elevated role
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)

	records, total, err := handler.profileService.List(request.Context(), principal, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, records, pagination.NewMeta(params.Page, params.Limit, total))
}
