// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into strongly-typed
Go structs, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the applications are Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Identity Authority Schema

// Config holds all runtime configuration for the Veyra identity authority.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis) backing the revocation index
	RedisURL string `env:"REDIS_URL,required"`

	// PasswordPepper is the process-wide secret mixed into every password
	// hash and token digest. Startup fails without it.
	PasswordPepper string `env:"PASSWORD_PEPPER,required"`

	// Key derivation parameters (Argon2id)
	KDFIterations  uint32 `env:"KDF_ITERATIONS"  envDefault:"3"`
	KDFMemoryKiB   uint32 `env:"KDF_MEMORY_KIB"  envDefault:"65536"`
	KDFParallelism uint8  `env:"KDF_PARALLELISM" envDefault:"2"`
	KDFSaltLength  int    `env:"KDF_SALT_LENGTH" envDefault:"32"`
	KDFHashLength  int    `env:"KDF_HASH_LENGTH" envDefault:"32"`

	// Token lifetimes
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"2h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// KeyExpiry is the lifetime of a signing key pair (90 days).
	KeyExpiry time.Duration `env:"KEY_EXPIRY" envDefault:"2160h"`

	// Cookie behavior
	CookieDomain       string `env:"COOKIE_DOMAIN"`
	CookieSameSiteNone bool   `env:"COOKIE_SAMESITE_NONE" envDefault:"false"`

	// Revocation index behavior
	RevocationTimeout  time.Duration `env:"REVOCATION_TIMEOUT"   envDefault:"200ms"`
	RevocationFailMode string        `env:"REVOCATION_FAIL_MODE" envDefault:"closed"`
}

// # Edge Gateway Schema

// GatewayConfig holds all runtime configuration for the Veyra edge gateway.
type GatewayConfig struct {

	// Server settings
	GatewayPort string `env:"GATEWAY_PORT" envDefault:"8081"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// UpstreamURL is the single backend the gateway proxies to.
	UpstreamURL string `env:"UPSTREAM_URL,required"`

	// PublicPaths are ant-style patterns that bypass credential validation.
	PublicPaths []string `env:"GATEWAY_PUBLIC_PATHS" envSeparator:"," envDefault:"/api/v1/auth/register,/api/v1/auth/login,/api/v1/auth/refresh,/.well-known/**,/health,/ready"`

	// JWKS discovery
	JWKSURL             string        `env:"JWKS_URL,required"`
	JWKSRefreshInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`
	JWKSMaxStale        time.Duration `env:"JWKS_MAX_STALE"        envDefault:"24h"`

	// Key-Value Store (Redis) backing the revocation index
	RedisURL string `env:"REDIS_URL,required"`

	// Revocation index behavior
	RevocationTimeout  time.Duration `env:"REVOCATION_TIMEOUT"   envDefault:"200ms"`
	RevocationFailMode string        `env:"REVOCATION_FAIL_MODE" envDefault:"closed"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// LoadGateway parses environment variables into a [GatewayConfig] struct.
func LoadGateway() (*GatewayConfig, error) {
	cfg := &GatewayConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// FailOpen reports whether revocation lookups should allow traffic when the
// revocation index is unreachable. The default is to fail closed.
func (c *Config) FailOpen() bool {
	return c.RevocationFailMode == "open"
}

// IsDevelopment reports whether the gateway is running in development mode.
func (c *GatewayConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the gateway is running in production mode.
func (c *GatewayConfig) IsProduction() bool {
	return c.Environment == "production"
}

// FailOpen reports whether revocation lookups should allow traffic when the
// revocation index is unreachable. The default is to fail closed.
func (c *GatewayConfig) FailOpen() bool {
	return c.RevocationFailMode == "open"
}
