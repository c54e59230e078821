package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Admin token secret
	if len(c.Admin.JWTSecret) < 32 {
		errs = append(errs, "ADMIN_JWT_SECRET must be at least 32 characters")
	}
	if c.Admin.TokenExpiry <= 0 {
		errs = append(errs, "ADMIN_TOKEN_EXPIRY must be positive")
	}

	// Quota
	if c.Quota.InitialCredits < 0 {
		errs = append(errs, fmt.Sprintf("QUOTA_INITIAL_CREDITS must be >= 0, got %d", c.Quota.InitialCredits))
	}
	if c.Quota.RateLimit < 1 {
		errs = append(errs, fmt.Sprintf("QUOTA_RATE_LIMIT must be >= 1, got %d", c.Quota.RateLimit))
	}
	if c.Quota.RateWindow <= 0 {
		errs = append(errs, "QUOTA_RATE_WINDOW must be positive")
	}

	// Upstream
	if c.Upstream.Host == "" {
		errs = append(errs, "UPSTREAM_HOST is required")
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, "UPSTREAM_TIMEOUT must be positive")
	}

	// Ledger backend
	switch c.Ledger.Backend {
	case LedgerBackendMemory:
	case LedgerBackendPostgres:
		if c.DB.Password == "" {
			errs = append(errs, "DB_PASSWORD is required for the postgres ledger")
		}
		if c.DB.Port < 1 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("LEDGER_BACKEND must be %q or %q, got %q",
			LedgerBackendMemory, LedgerBackendPostgres, c.Ledger.Backend))
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.Redis.Enabled && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Registration throttle: warn only
	if !c.Redis.Enabled {
		slog.Warn("REDIS_ENABLED is false, POST /users/ is not throttled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
