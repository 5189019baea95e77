// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables
// and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Remote   RemoteConfig   `koanf:"remote"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
}

// DatabaseConfig holds DuckDB configuration for the relational store
// (users, roles, menus, refresh tokens, login log).
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// SecurityConfig holds token, session and request-hardening configuration.
type SecurityConfig struct {
	// JWTSecret signs refresh tokens. Required. Must be at least 32 bytes
	// in production.
	JWTSecret string `koanf:"jwt_secret"`

	// RefreshTokenTTL is the refresh token lifetime in minutes.
	RefreshTokenTTL int `koanf:"refresh_token_ttl_minutes"`

	// AccessTokenTTL is the opaque access token lifetime in minutes.
	AccessTokenTTL int `koanf:"access_token_ttl_minutes"`

	// InternalSecret enables the trusted service-to-service channel when
	// non-empty. Requests carrying a matching X-Internal-Auth-Secret header
	// bypass per-request permission checks.
	InternalSecret string `koanf:"internal_secret"`

	// GuestLoginEnabled toggles the guest provisioning endpoint.
	GuestLoginEnabled bool `koanf:"guest_login_enabled"`

	// GuestRoleKey is the role assigned to provisioned guest accounts.
	GuestRoleKey string `koanf:"guest_role_key"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	LoginRateLimit    float64       `koanf:"login_rate_limit"` // per-IP logins per second
	LoginRateBurst    int           `koanf:"login_rate_burst"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`

	// SessionStore selects the access-token session backend: memory or badger.
	SessionStore     string `koanf:"session_store"`
	SessionStorePath string `koanf:"session_store_path"`

	// GateWorkers moves gate decisions onto a bounded worker pool when
	// positive. Zero keeps decisions on the request goroutine.
	GateWorkers int `koanf:"gate_workers"`
}

// RemoteConfig configures the outbound permission-check client used when the
// gate delegates decisions to a separate authorization service. When URL is
// empty the gate checks permissions locally.
type RemoteConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`

	// Circuit breaker settings for the remote client.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// AuditConfig configures the asynchronous login/logout audit trail.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for missing or malformed values.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	// HS512 refresh tokens need real key material. Development tolerates
	// short secrets so local setups keep working.
	if c.Server.Environment == "production" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 bytes in production, got %d", len(c.Security.JWTSecret))
	}
	if c.Security.RefreshTokenTTL <= 0 {
		return fmt.Errorf("security.refresh_token_ttl_minutes must be positive, got %d", c.Security.RefreshTokenTTL)
	}
	if c.Security.AccessTokenTTL <= 0 {
		return fmt.Errorf("security.access_token_ttl_minutes must be positive, got %d", c.Security.AccessTokenTTL)
	}
	switch c.Security.SessionStore {
	case "memory", "badger":
	default:
		return fmt.Errorf("security.session_store must be memory or badger, got %q", c.Security.SessionStore)
	}
	if c.Security.SessionStore == "badger" && c.Security.SessionStorePath == "" {
		return fmt.Errorf("security.session_store_path is required when session_store is badger")
	}
	if c.Security.GuestLoginEnabled && c.Security.GuestRoleKey == "" {
		return fmt.Errorf("security.guest_role_key is required when guest login is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("logging.level must be a valid level, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
