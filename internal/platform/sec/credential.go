// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"net/http"
	"strings"

	"github.com/taibuivan/veyra/internal/platform/constants"
)

// # Credential Extraction
//
// Every validator in the platform (gateway, trust kernel, authority) applies
// the same extraction precedence so that a request carrying both transports
// is always interpreted identically:
//
//   - Access token:  Authorization: Bearer <token>  >  accessToken cookie
//   - Refresh token: request body field             >  refreshToken cookie

// ExtractAccessToken returns the access token presented on the request.
//
// A syntactically malformed Authorization header (wrong scheme, missing
// token) yields nothing; extraction never falls through to the cookie in
// that case because the client expressed an explicit, broken intent.
func ExtractAccessToken(request *http.Request) (string, bool) {
	header := request.Header.Get(constants.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
			return strings.TrimSpace(parts[1]), true
		}
		return "", false
	}

	cookie, err := request.Cookie(constants.AccessTokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// ExtractRefreshToken returns the refresh token for the request, preferring
// the explicit body value over the refreshToken cookie.
func ExtractRefreshToken(request *http.Request, bodyValue string) (string, bool) {
	if strings.TrimSpace(bodyValue) != "" {
		return strings.TrimSpace(bodyValue), true
	}

	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
