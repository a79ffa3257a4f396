// Package config loads gradebook settings from environment variables.
// Every field has a default except the database URL; the result is validated
// on startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Fetch    FetchConfig
	Import   ImportConfig
	Alerts   AlertConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so import progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to every route except the progress stream.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema on startup.
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// CacheConfig holds the response cache settings.
type CacheConfig struct {
	DefaultTTL time.Duration `env:"CACHE_DEFAULT_TTL" default:"5m"`

	// MaxEntries bounds the cache with LRU eviction. 0 means unbounded.
	MaxEntries int `env:"CACHE_MAX_ENTRIES" default:"0"`
}

// FetchConfig holds retry and batch settings for data fetches.
type FetchConfig struct {
	MaxRetries int           `env:"FETCH_MAX_RETRIES" default:"3"`
	RetryDelay time.Duration `env:"FETCH_RETRY_DELAY" default:"1s"`

	// BatchConcurrency limits parallel operations in one batch. 0 means no limit.
	BatchConcurrency int `env:"FETCH_BATCH_CONCURRENCY" default:"0"`
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	MaxFileSize   int64         `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`
	MaxRows       int           `env:"IMPORT_MAX_ROWS" default:"5000"`
	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"5"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`
	Timeout       time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`
	Retention     time.Duration `env:"IMPORT_RETENTION" default:"5m"`

	// StudentIDPattern overrides the default 6-10 digit student ID rule.
	StudentIDPattern string `env:"IMPORT_STUDENT_ID_PATTERN"`
}

// AlertConfig holds the in-memory alert center settings.
type AlertConfig struct {
	MaxRetained int `env:"ALERTS_MAX_RETAINED" default:"100"`
}

// RateLimitConfig holds per-IP request limits, counted per minute.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit applies to import uploads on top of the general limit.
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds request authentication settings.
type SecurityConfig struct {
	// APIKeys lists accepted X-API-Key values, comma-separated.
	APIKeys       []string `env:"API_KEYS"`
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`

	// TrustedProxies lists CIDRs whose forwarding headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
