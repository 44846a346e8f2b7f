// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/ctxutil"
	"github.com/taibuivan/veyra/internal/platform/sec"
	"github.com/taibuivan/veyra/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
ID retrieves a named URL parameter (UUID) from the request.
*/
func ID(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Principal extracts the verified principal from the request context.

Returns nil if the request is not authenticated.
*/
func Principal(request *http.Request) *sec.Principal {
	return ctxutil.GetPrincipal(request.Context())
}

/*
RequiredPrincipal ensures the request is authenticated and returns the principal.

Returns:
  - *sec.Principal: The verified principal
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredPrincipal(request *http.Request) (*sec.Principal, error) {

	// Get the verified principal
	principal := ctxutil.GetPrincipal(request.Context())

	// If the request is not authenticated, return an error
	if principal == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return principal, nil
}

/*
RequiredUserID returns the User ID of the currently authenticated principal.

Returns:
  - string: User UUID
  - error: apperr.Unauthorized if not authenticated
*/
func RequiredUserID(request *http.Request) (string, error) {

	// Get the verified principal
	principal, err := RequiredPrincipal(request)

	// If the request is not authenticated, return an error
	if err != nil {
		return "", err
	}

	return principal.UserID, nil
}
