package client

import (
	"time"

	"github.com/satishbabariya/sqltyped/internal/adapters/telemetry"
)

// Config contains all client configuration options.
type Config struct {
	// DatabaseURL is the SQLite connection string, e.g. "file:app.db" or
	// ":memory:".
	DatabaseURL string

	// CacheSize is the number of analyzed statements kept.
	// Default: 256. Zero disables the cache.
	CacheSize int

	// CacheTTL expires analyzed statements. Zero keeps them until evicted.
	CacheTTL time.Duration

	// StatementCache is the number of prepared statements kept open.
	// Default: 64
	StatementCache int

	// QueryTimeout bounds every call that has no deadline of its own.
	// Zero means no timeout.
	QueryTimeout time.Duration

	// Telemetry records executions. Default: no-op.
	Telemetry telemetry.Telemetry
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheSize:      256,
		StatementCache: 64,
	}
}

// Option is a function that configures the client.
type Option func(*Config)

// WithDatabaseURL sets the database URL.
func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

// WithCache sizes the analysis cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheSize = size
		c.CacheTTL = ttl
	}
}

// WithStatementCache sets the number of prepared statements kept open.
func WithStatementCache(n int) Option {
	return func(c *Config) {
		c.StatementCache = n
	}
}

// WithQueryTimeout sets the query timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.QueryTimeout = d
	}
}

// WithTelemetry sets the telemetry adapter.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(c *Config) {
		c.Telemetry = t
	}
}

// ApplyOptions applies options to a config.
func ApplyOptions(config *Config, opts ...Option) {
	for _, opt := range opts {
		opt(config)
	}
}
