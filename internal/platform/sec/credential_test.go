// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/veyra/internal/platform/sec"
)

/*
TestExtractAccessToken verifies the header-before-cookie precedence rules.
*/
func TestExtractAccessToken(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		cookie     string
		wantToken  string
		wantFound  bool
	}{
		{
			name:       "bearer header only",
			authHeader: "Bearer header-token",
			wantToken:  "header-token",
			wantFound:  true,
		},
		{
			name:      "cookie only",
			cookie:    "cookie-token",
			wantToken: "cookie-token",
			wantFound: true,
		},
		{
			name:       "header wins over cookie",
			authHeader: "Bearer header-token",
			cookie:     "cookie-token",
			wantToken:  "header-token",
			wantFound:  true,
		},
		{
			name:       "malformed header does not fall through to cookie",
			authHeader: "Basic dXNlcjpwYXNz",
			cookie:     "cookie-token",
			wantFound:  false,
		},
		{
			name:       "bearer with empty token",
			authHeader: "Bearer ",
			wantFound:  false,
		},
		{
			name:       "case-insensitive scheme",
			authHeader: "bearer header-token",
			wantToken:  "header-token",
			wantFound:  true,
		},
		{
			name:      "nothing presented",
			wantFound: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/v1/profile/me", nil)
			if tc.authHeader != "" {
				request.Header.Set("Authorization", tc.authHeader)
			}
			if tc.cookie != "" {
				request.AddCookie(&http.Cookie{Name: "accessToken", Value: tc.cookie})
			}

			token, found := sec.ExtractAccessToken(request)
			assert.Equal(t, tc.wantFound, found)
			assert.Equal(t, tc.wantToken, token)
		})
	}
}

/*
TestExtractRefreshToken verifies that an explicit body value takes priority
over the refreshToken cookie.
*/
func TestExtractRefreshToken(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	request.AddCookie(&http.Cookie{Name: "refreshToken", Value: "cookie-refresh"})

	// 1. Body value wins
	token, found := sec.ExtractRefreshToken(request, "body-refresh")
	assert.True(t, found)
	assert.Equal(t, "body-refresh", token)

	// 2. Empty body falls back to the cookie
	token, found = sec.ExtractRefreshToken(request, "")
	assert.True(t, found)
	assert.Equal(t, "cookie-refresh", token)

	// 3. Nothing presented
	bare := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	_, found = sec.ExtractRefreshToken(bare, "  ")
	assert.False(t, found)
}
