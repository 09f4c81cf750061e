// Package driver provides the database driver boundary used by the connection
// pool and the transaction coordinator.
//
// This package contains the public contract that all drivers must implement.
// Concrete driver implementations are in pkg/drivers/ subdirectories.
package driver

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
)

// Conn is one physical database connection.
// *sql.Conn satisfies it; tests may use *sql.DB from go-sqlmock.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

// OpenFunc opens a new physical connection.
type OpenFunc func(ctx context.Context) (Conn, error)

// Driver defines the interface that all database drivers must implement.
type Driver interface {
	// Connect prepares the driver for a data source and verifies it is reachable.
	Connect(ctx context.Context, cfg core.DataSourceConfig) error

	// Open opens a new physical connection. Only valid after Connect.
	Open(ctx context.Context) (Conn, error)

	// Classify maps a driver error to the core error taxonomy: connection
	// failures become *core.ConnectionError, conflicts *core.ConflictError.
	// Other errors are returned unchanged. op names the failed operation.
	Classify(op string, err error) error

	// Dialect returns the SQL dialect of the connected database.
	Dialect() *dialect.Dialect

	// Close releases the driver's connector. Connections already handed out
	// must be closed by their owner.
	Close() error
}
