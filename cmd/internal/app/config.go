package app

import (
	"strings"
	"time"
)

// Config contains the server runtime configuration loaded from environment variables.
// Session and auth settings live in their own packages.
type Config struct {
	Env       string
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects Postgres. When empty the SQLite file at SQLitePath is used.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string
	SQLitePath  string

	// ReadinessRequireDB makes /readyz fail unless Postgres is configured and reachable.
	ReadinessRequireDB bool

	// RedisURL selects the shared rate limiter; otherwise limits are per process.
	RedisURL        string
	RateLimitMax    int
	RateLimitWindow time.Duration

	UploadDir      string
	MaxUploadBytes int64

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	TrustProxy bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Env:       EnvString("CLOSET_ENV", "development"),
		HTTPAddr:  EnvString("CLOSET_HTTP_ADDR", "0.0.0.0:3000"),
		LogLevel:  EnvString("CLOSET_LOG_LEVEL", "info"),
		LogFormat: EnvString("CLOSET_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("CLOSET_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CLOSET_HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      EnvDuration("CLOSET_HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       EnvDuration("CLOSET_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("CLOSET_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CLOSET_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CLOSET_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CLOSET_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("CLOSET_DB_SCHEMA", "closet"),
		SQLitePath:  EnvString("CLOSET_SQLITE_PATH", "file:closet.db"),

		ReadinessRequireDB: EnvBool("CLOSET_READINESS_REQUIRE_DB", false),

		RedisURL:        EnvString("CLOSET_REDIS_URL", ""),
		RateLimitMax:    EnvInt("CLOSET_RATE_LIMIT_MAX", 100),
		RateLimitWindow: EnvDuration("CLOSET_RATE_LIMIT_WINDOW", time.Hour),

		UploadDir:      EnvString("CLOSET_UPLOAD_DIR", "uploads/private/img/closet"),
		MaxUploadBytes: int64(EnvInt("CLOSET_MAX_UPLOAD_BYTES", 10<<20)),

		CORSAllowedOrigins:   EnvList("CLOSET_CORS_ORIGIN"),
		CORSAllowCredentials: EnvBool("CLOSET_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("CLOSET_CORS_MAX_AGE", 600),

		TrustProxy: EnvBool("CLOSET_AUTH_TRUST_PROXY", false),
	}
}

// Production reports whether the server runs with production hardening.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}
