package core

import (
	"fmt"
	"time"
)

// Pool defaults applied by PoolConfig.WithDefaults.
const (
	DefaultPoolMax          = 10
	DefaultAcquireTimeout   = 5 * time.Second
	DefaultIdleTimeout      = 5 * time.Minute
	DefaultHealthCheckAfter = 30 * time.Second
	DefaultShutdownGrace    = 10 * time.Second
)

// PoolConfig bounds the pool owned by one data source.
type PoolConfig struct {
	// Min connections opened eagerly and kept through idle expiry.
	Min int
	// Max connections open at any instant (idle + leased).
	Max int
	// AcquireTimeout bounds how long Acquire waits for a free handle.
	AcquireTimeout time.Duration
	// IdleTimeout closes handles that sat idle longer than this.
	IdleTimeout time.Duration
	// HealthCheckAfter pings a handle on acquire when it was idle longer than this.
	HealthCheckAfter time.Duration
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c PoolConfig) WithDefaults() PoolConfig {
	if c.Max <= 0 {
		c.Max = DefaultPoolMax
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.HealthCheckAfter <= 0 {
		c.HealthCheckAfter = DefaultHealthCheckAfter
	}
	return c
}

// Validate reports the first inconsistency in the pool bounds.
func (c PoolConfig) Validate() error {
	if c.Max <= 0 {
		return fmt.Errorf("pool max must be positive, got %d", c.Max)
	}
	if c.Min < 0 {
		return fmt.Errorf("pool min must not be negative, got %d", c.Min)
	}
	if c.Min > c.Max {
		return fmt.Errorf("pool min (%d) exceeds max (%d)", c.Min, c.Max)
	}
	if c.AcquireTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("pool timeouts must not be negative")
	}
	return nil
}

// DataSourceConfig describes one logical database.
// It is created from configuration input at startup and passed by value.
type DataSourceConfig struct {
	// Name is the data source key in the configuration file
	Name string

	// Dialect is one of mysql, postgresql, sqlite
	Dialect string

	// Network databases
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Path is the database file for SQLite (":memory:" for a private in-memory db)
	Path string

	// Options contains additional driver-specific options
	Options map[string]string

	Pool PoolConfig
}

// Option returns a driver option or fallback when unset.
func (c DataSourceConfig) Option(key, fallback string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// String renders the data source without credentials, for logs.
func (c DataSourceConfig) String() string {
	switch CanonicalDialect(c.Dialect) {
	case DialectSQLite:
		return fmt.Sprintf("%s(sqlite:%s)", c.Name, c.Path)
	default:
		return fmt.Sprintf("%s(%s://%s@%s:%d/%s)", c.Name, CanonicalDialect(c.Dialect), c.Username, c.Host, c.Port, c.Database)
	}
}
