// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenService) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Inkframe identity API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// JWTSecret signs access tokens (HS256). A missing or short secret makes
	// every verification fail closed; it never degrades to unsigned tokens.
	JWTSecret string `env:"JWT_SECRET,required"`

	// Cookie policy for the access/refresh token pair
	CookieDomain   string `env:"COOKIE_DOMAIN"`
	CookieSecure   bool   `env:"COOKIE_SECURE"   envDefault:"true"`
	CookieSameSite string `env:"COOKIE_SAMESITE" envDefault:""`

	// Login throttling (fixed window per IP)
	LoginRateLimitAttempts int `env:"LOGIN_RATE_LIMIT_ATTEMPTS" envDefault:"5"`
	LoginRateLimitWindowS  int `env:"LOGIN_RATE_LIMIT_WINDOW_S" envDefault:"60"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// MinJWTSecretLength is the minimum byte length accepted for the signing secret.
// Anything shorter is treated as a misconfiguration and refused at startup.
const MinJWTSecretLength = 32

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// Refuse weak signing material early: a bad secret must never silently
	// accept tokens, so the process does not start at all.
	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return nil, fmt.Errorf("config: JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
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

// CookieSameSiteMode resolves the SameSite policy for auth cookies.
//
// # Policy
//
// When COOKIE_SAMESITE is unset, the mode is derived from the secure flag:
// Strict for TLS deployments, Lax otherwise (so local HTTP development works).
func (c *Config) CookieSameSiteMode() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	}

	if c.CookieSecure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
