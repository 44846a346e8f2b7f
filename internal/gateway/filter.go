// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/iam/token"
	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/constants"
	"github.com/taibuivan/veyra/internal/platform/respond"
	"github.com/taibuivan/veyra/internal/platform/sec"
)

// # Validation Filter

// Filter is the edge validation pipeline.
//
// Backend services re-validate independently; the identity headers the
// filter stamps are advisory hints, which is why the inbound copies are
// stripped unconditionally, public path or not.
type Filter struct {
	verifier *token.Verifier
	revoker  *revocation.Index
	public   *Matcher
	logger   *slog.Logger
}

// NewFilter constructs the edge [Filter].
func NewFilter(verifier *token.Verifier, revoker *revocation.Index, public *Matcher, logger *slog.Logger) *Filter {
	return &Filter{
		verifier: verifier,
		revoker:  revoker,
		public:   public,
		logger:   logger,
	}
}

/*
Handle wraps the upstream proxy with the validation pipeline.

Description: Extract, verify signature, check revocation, decorate,
forward. Public paths skip straight to forwarding. Each stage maps its
failure to one client-visible kind: missing/invalid/revoked credentials
are 401, an unreachable revocation store in closed mode is 503.
*/
func (filter *Filter) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

		// A client must never smuggle identity claims past the filter.
		stripIdentityHeaders(request)

		if filter.public.Matches(request.URL.Path) {
			next.ServeHTTP(writer, request)
			return
		}

		// 1. Extract
		raw, ok := sec.ExtractAccessToken(request)
		if !ok {
			respond.Error(writer, request, apperr.Unauthorized("Missing access token"))
			return
		}

		// 2. Verify signature, expiry, issuer
		claims, err := filter.verifier.Verify(request.Context(), raw)
		if err != nil {
			respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		// 3. Check revocation
		revoked, err := filter.revoker.IsRevoked(request.Context(), claims.ID, claims.Subject, claims.IssuedAt.Time)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		if revoked {
			respond.Error(writer, request, apperr.Unauthorized("Token has been revoked"))
			return
		}

		// 4. Decorate with verified identity
		request.Header.Set(constants.HeaderXUserID, claims.Subject)
		request.Header.Set(constants.HeaderXTenantID, claims.TenantID)
		request.Header.Set(constants.HeaderXRoles, strings.Join(claims.Roles, ","))

		// 5. Forward
		next.ServeHTTP(writer, request)
	})
}

func stripIdentityHeaders(request *http.Request) {
	request.Header.Del(constants.HeaderXUserID)
	request.Header.Del(constants.HeaderXTenantID)
	request.Header.Del(constants.HeaderXRoles)
}
