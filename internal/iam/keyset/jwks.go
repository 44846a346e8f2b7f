// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keyset

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/taibuivan/veyra/internal/platform/respond"
)

// # JWKS Publication (RFC 7517)

/*
PublishableSet assembles the public JWKS document.

Description: Every key that may still verify a live token is published with
its kid, alg RS256, and use "sig". Private material never enters the set.

Parameters:
  - context: context.Context
  - grace: time.Duration (how long past expiry a key keeps verifying)

Returns:
  - jwk.Set: Serializable key set
  - error: Retrieval or conversion failures
*/
func (service *Service) PublishableSet(context stdctx.Context, grace time.Duration) (jwk.Set, error) {
	keys, err := service.repository.ListPublishable(context, grace)
	if err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	for _, signingKey := range keys {
		public, err := signingKey.Public()
		if err != nil {
			return nil, err
		}

		entry, err := jwk.Import(public)
		if err != nil {
			return nil, fmt.Errorf("keyset_jwks_import_failed: %w", err)
		}
		if err := entry.Set(jwk.KeyIDKey, signingKey.Kid); err != nil {
			return nil, fmt.Errorf("keyset_jwks_set_kid_failed: %w", err)
		}
		if err := entry.Set(jwk.AlgorithmKey, "RS256"); err != nil {
			return nil, fmt.Errorf("keyset_jwks_set_alg_failed: %w", err)
		}
		if err := entry.Set(jwk.KeyUsageKey, "sig"); err != nil {
			return nil, fmt.Errorf("keyset_jwks_set_use_failed: %w", err)
		}

		if err := set.AddKey(entry); err != nil {
			return nil, fmt.Errorf("keyset_jwks_add_failed: %w", err)
		}
	}

	return set, nil
}

// JWKSHandler serves GET /.well-known/jwks.json.
type JWKSHandler struct {
	service *Service
	grace   time.Duration
}

// NewJWKSHandler constructs the JWKS endpoint handler.
//
// grace should be at least the access-token TTL so that a key rotated out
// moments after signing stays discoverable for its tokens' whole lifetime.
func NewJWKSHandler(service *Service, grace time.Duration) *JWKSHandler {
	return &JWKSHandler{service: service, grace: grace}
}

// ServeHTTP writes the JWKS document.
func (handler *JWKSHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	set, err := handler.service.PublishableSet(request.Context(), handler.grace)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Validators poll this endpoint; allow short-lived intermediary caching.
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.Header().Set("Cache-Control", "public, max-age=300")
	writer.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(writer).Encode(set)
}
