// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package trust is the in-process validation kernel backend services mount in
front of their protected routes.

It re-validates every request independently of the edge gateway: signature
and expiry against the shared key set, then liveness against the revocation
index. Forwarded identity headers are advisory only; the kernel trusts
nothing but the token itself.

Handlers receive the verified [sec.Principal] through the request context
and consult [Authorize] for per-resource decisions.
*/
package trust

import (
	"log/slog"
	"net/http"

	"github.com/taibuivan/veyra/internal/iam/revocation"
	"github.com/taibuivan/veyra/internal/iam/token"
	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/ctxutil"
	"github.com/taibuivan/veyra/internal/platform/respond"
	"github.com/taibuivan/veyra/internal/platform/sec"
)

// # Kernel

// Kernel validates access tokens for one backend service.
type Kernel struct {
	verifier *token.Verifier
	revoker  *revocation.Index
	logger   *slog.Logger
}

// NewKernel constructs a trust [Kernel].
func NewKernel(verifier *token.Verifier, revoker *revocation.Index, logger *slog.Logger) *Kernel {
	return &Kernel{verifier: verifier, revoker: revoker, logger: logger}
}

/*
Authenticate verifies the request credential when one is present.

Description: Extracts the access token (Authorization header first, then
the accessToken cookie), verifies signature, expiry, and issuer, checks the
revocation index, and installs the principal into the request context. A
present-but-invalid credential is rejected immediately; an absent one
passes through unauthenticated so [RequirePrincipal] can decide per route.
*/
func (kernel *Kernel) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		raw, ok := sec.ExtractAccessToken(request)
		if !ok {
			next.ServeHTTP(writer, request)
			return
		}

		claims, err := kernel.verifier.Verify(request.Context(), raw)
		if err != nil {
			respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		revoked, err := kernel.revoker.IsRevoked(request.Context(), claims.ID, claims.Subject, claims.IssuedAt.Time)
		if err != nil {
			// Fail-closed mode surfaces the store outage as 503.
			respond.Error(writer, request, err)
			return
		}
		if revoked {
			respond.Error(writer, request, apperr.Unauthorized("Token has been revoked"))
			return
		}

		requestContext := ctxutil.WithPrincipal(request.Context(), claims.Principal())
		next.ServeHTTP(writer, request.WithContext(requestContext))
	})
}

// RequirePrincipal rejects unauthenticated requests with 401.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetPrincipal(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole rejects authenticated requests whose principal holds none of
// the given roles. Role membership is flat; there is no hierarchy.
func RequireRole(roles ...sec.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}
			if !principal.HasAnyRole(roles...) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient role"))
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
