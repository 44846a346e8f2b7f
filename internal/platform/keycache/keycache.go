// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package keycache maintains a local copy of the identity authority's JWKS
document for token validators.

The cache refreshes on a fixed interval and additionally on demand when a
token names a kid the cache has never seen, which is the normal signal that
the authority rotated its signing key. Forced refreshes are rate limited so
a flood of forged kids cannot turn the cache into a request amplifier.

When the authority is unreachable the cached document keeps serving until
it exceeds the configured max-stale window; past that, resolution fails and
validators reject with upstream-unavailable semantics.
*/
package keycache

import (
	stdctx "context"
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/taibuivan/veyra/internal/platform/apperr"
)

// # Constants

const (
	// fetchTimeout bounds one JWKS round trip.
	fetchTimeout = 5 * time.Second

	// minForcedInterval throttles unknown-kid refreshes.
	minForcedInterval = 10 * time.Second

	// maxDocumentBytes caps the JWKS response size.
	maxDocumentBytes = 1 << 20
)

// # Cache

// Cache is a refreshing JWKS mirror. It satisfies the key-resolver contract
// of the token verifier.
type Cache struct {
	url             string
	client          *http.Client
	refreshInterval time.Duration
	maxStale        time.Duration
	logger          *slog.Logger

	mu         sync.RWMutex
	set        jwk.Set
	fetchedAt  time.Time
	lastForced time.Time
}

// Config bundles the cache parameters.
type Config struct {
	URL             string
	RefreshInterval time.Duration
	MaxStale        time.Duration
	Logger          *slog.Logger
}

// New constructs a [Cache]. Call [Cache.Prime] before serving traffic and
// run [Cache.Run] in a goroutine for periodic refresh.
func New(config Config) *Cache {
	return &Cache{
		url:             config.URL,
		client:          &http.Client{Timeout: fetchTimeout},
		refreshInterval: config.RefreshInterval,
		maxStale:        config.MaxStale,
		logger:          config.Logger,
	}
}

/*
Prime performs the initial fetch.

Description: A validator must not come up without a key set; startup treats
a Prime failure as fatal.

Parameters:
  - context: context.Context

Returns:
  - error: Fetch or parse failures
*/
func (cache *Cache) Prime(context stdctx.Context) error {
	return cache.refresh(context)
}

/*
Run refreshes the cache on the configured interval until the context ends.

Description: Refresh failures are logged, not fatal; the cached document
keeps serving inside the max-stale window.

Parameters:
  - context: context.Context
*/
func (cache *Cache) Run(context stdctx.Context) {
	ticker := time.NewTicker(cache.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-context.Done():
			return
		case <-ticker.C:
			if err := cache.refresh(context); err != nil {
				cache.logger.Warn("keycache_refresh_failed", slog.String("error", err.Error()))
			}
		}
	}
}

/*
ResolvePublicKey returns the RSA public key published under a kid.

Description: An unknown kid triggers one rate-limited forced refresh before
giving up, so tokens signed by a freshly rotated key resolve without waiting
for the next interval. A cache staler than max-stale refuses to answer.

Parameters:
  - context: context.Context
  - kid: string

Returns:
  - *rsa.PublicKey: The verification key
  - error: Unknown kid or apperr.UpstreamUnavailable past max-stale
*/
func (cache *Cache) ResolvePublicKey(context stdctx.Context, kid string) (*rsa.PublicKey, error) {
	if public, ok := cache.lookup(kid); ok {
		return public, nil
	}

	// Unknown kid: likely a rotation we have not observed yet.
	if cache.tryForcedRefresh(context) {
		if public, ok := cache.lookup(kid); ok {
			return public, nil
		}
	}

	cache.mu.RLock()
	age := time.Since(cache.fetchedAt)
	empty := cache.set == nil
	cache.mu.RUnlock()

	if empty || age > cache.maxStale {
		return nil, apperr.UpstreamUnavailable(fmt.Errorf("keycache_stale: key set is %s old", age))
	}

	return nil, fmt.Errorf("keycache_unknown_kid: %s", kid)
}

// lookup resolves a kid against the cached set.
func (cache *Cache) lookup(kid string) (*rsa.PublicKey, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	if cache.set == nil || time.Since(cache.fetchedAt) > cache.maxStale {
		return nil, false
	}

	key, found := cache.set.LookupKeyID(kid)
	if !found {
		return nil, false
	}

	var public rsa.PublicKey
	if err := jwk.Export(key, &public); err != nil {
		cache.logger.Warn("keycache_export_failed",
			slog.String("kid", kid),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	return &public, true
}

// tryForcedRefresh refreshes outside the schedule, at most once per
// minForcedInterval. Reports whether a refresh was attempted and succeeded.
func (cache *Cache) tryForcedRefresh(context stdctx.Context) bool {
	cache.mu.Lock()
	if time.Since(cache.lastForced) < minForcedInterval {
		cache.mu.Unlock()
		return false
	}
	cache.lastForced = time.Now()
	cache.mu.Unlock()

	if err := cache.refresh(context); err != nil {
		cache.logger.Warn("keycache_forced_refresh_failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// refresh fetches and installs the JWKS document.
func (cache *Cache) refresh(context stdctx.Context) error {
	bounded, cancel := stdctx.WithTimeout(context, fetchTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(bounded, http.MethodGet, cache.url, nil)
	if err != nil {
		return fmt.Errorf("keycache_request_failed: %w", err)
	}

	response, err := cache.client.Do(request)
	if err != nil {
		return fmt.Errorf("keycache_fetch_failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("keycache_fetch_status: %d", response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxDocumentBytes))
	if err != nil {
		return fmt.Errorf("keycache_read_failed: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return fmt.Errorf("keycache_parse_failed: %w", err)
	}

	cache.mu.Lock()
	cache.set = set
	cache.fetchedAt = time.Now()
	cache.mu.Unlock()

	cache.logger.Debug("keycache_refreshed", slog.Int("keys", set.Len()))
	return nil
}
