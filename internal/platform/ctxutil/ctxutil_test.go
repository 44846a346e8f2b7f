// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/veyra/internal/platform/ctxutil"
	"github.com/taibuivan/veyra/internal/platform/sec"
)

/*
TestContext_RequestID verifies that Request IDs can be injected and retrieved.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Initially should return the default logger
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_Principal verifies that a verified principal can be stored in context.
*/
func TestContext_Principal(t *testing.T) {
	ctx := context.Background()
	principal := &sec.Principal{
		UserID:   "user-123",
		TenantID: "tenant-456",
		Roles:    []sec.Role{sec.RoleSeller},
	}

	// 1. Initially should be nil
	assert.Nil(t, ctxutil.GetPrincipal(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithPrincipal(ctx, principal)
	retrieved := ctxutil.GetPrincipal(ctx)

	assert.NotNil(t, retrieved)
	assert.Equal(t, "user-123", retrieved.UserID)
	assert.Equal(t, "tenant-456", retrieved.TenantID)
	assert.True(t, retrieved.HasRole(sec.RoleSeller))
	assert.False(t, retrieved.IsAdmin())
}
