package app

import (
	"errors"
	"slices"

	"closet/cmd/internal/auth/session"
	"closet/cmd/internal/sqlitedb"
)

// ValidateSecurityConfig refuses startup configurations that would run
// production with weakened guarantees.
func ValidateSecurityConfig(cfg Config, sess session.Config) error {
	if slices.Contains(cfg.CORSAllowedOrigins, "*") && cfg.CORSAllowCredentials {
		return errors.New("security policy: CLOSET_CORS_ORIGIN=* cannot be combined with credentials")
	}
	if !cfg.Production() {
		return nil
	}
	if !sess.Production {
		return errors.New("security policy: production server with non-production refresh cookie")
	}
	if cfg.DatabaseURL == "" && sqlitedb.IsMemory(cfg.SQLitePath) {
		return errors.New("security policy: production requires a persistent database")
	}
	return nil
}
