package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines the runtime configuration of the session subsystem.
type Config struct {
	// Issuer is set as the "iss" claim and required on verification.
	Issuer string

	// AccessSecret signs access tokens. It must differ from RefreshSecret.
	AccessSecret []byte
	// AccessTokenTTL is the access token lifetime.
	AccessTokenTTL time.Duration

	// RefreshSecret signs refresh tokens.
	RefreshSecret []byte
	// RefreshTokenTTL is the refresh token lifetime.
	RefreshTokenTTL time.Duration

	// CookieExpiresInDays is the refresh cookie lifetime in whole days.
	CookieExpiresInDays int
	// CookieName is the refresh cookie name.
	CookieName string
	// CookiePath scopes the refresh cookie.
	CookiePath string

	// Production enables Secure and SameSite=Strict on the refresh cookie.
	Production bool

	// ClockSkew is the leeway applied to exp/iat validation.
	ClockSkew time.Duration
}

// DefaultConfig returns defaults suitable for development. Secrets are left empty.
func DefaultConfig() Config {
	return Config{
		Issuer:              "closet",
		AccessTokenTTL:      time.Hour,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		CookieExpiresInDays: 7,
		CookieName:          "refreshJwt",
		CookiePath:          "/",
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - CLOSET_JWT_SECRET
//   - CLOSET_JWT_REFRESH_SECRET (must differ from CLOSET_JWT_SECRET)
//
// Optional:
//   - CLOSET_JWT_ISSUER
//   - CLOSET_JWT_EXPIRES_IN, CLOSET_JWT_REFRESH_EXPIRES_IN (Go durations)
//   - CLOSET_JWT_REFRESH_COOKIE_EXPIRES_IN (days; invalid values fall back to 7)
//   - CLOSET_JWT_CLOCK_SKEW
//   - CLOSET_ENV ("production" hardens the cookie)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("CLOSET_JWT_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	cfg.AccessSecret = []byte(strings.TrimSpace(os.Getenv("CLOSET_JWT_SECRET")))
	cfg.RefreshSecret = []byte(strings.TrimSpace(os.Getenv("CLOSET_JWT_REFRESH_SECRET")))

	if v := os.Getenv("CLOSET_JWT_EXPIRES_IN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("CLOSET_JWT_REFRESH_EXPIRES_IN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	// A bad day count keeps the default window.
	if v := strings.TrimSpace(os.Getenv("CLOSET_JWT_REFRESH_COOKIE_EXPIRES_IN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CookieExpiresInDays = n
		}
	}

	if v := os.Getenv("CLOSET_JWT_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.Production = IsProduction(os.Getenv("CLOSET_ENV"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the issuer relies on.
func (c Config) Validate() error {
	if len(c.AccessSecret) == 0 || len(c.RefreshSecret) == 0 {
		return ErrConfig
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return ErrConfig
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return ErrConfig
	}
	return nil
}

// IsProduction reports whether env names the production deployment.
func IsProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "production")
}
