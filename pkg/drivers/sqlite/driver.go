package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
	sqlitedialect "github.com/leapstack-labs/leaporm/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// DefaultBusyTimeoutMS is how long a connection waits on a locked database.
const DefaultBusyTimeoutMS = 5000

// MemoryPath selects an in-memory database shared by all pool connections.
// Its contents live as long as at least one connection stays open.
const MemoryPath = ":memory:"

// Driver implements the driver.Driver interface for SQLite.
type Driver struct {
	driver.BaseSQLDriver
}

// New creates a new SQLite driver instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		BaseSQLDriver: driver.BaseSQLDriver{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this driver.
func (d *Driver) DialectName() string {
	return core.DialectSQLite
}

// Dialect returns the SQLite dialect.
func (d *Driver) Dialect() *dialect.Dialect {
	return sqlitedialect.SQLite
}

// Connect opens the connector for the database file in cfg.Path.
func (d *Driver) Connect(ctx context.Context, cfg core.DataSourceConfig) error {
	dsn, err := buildSQLiteDSN(cfg)
	if err != nil {
		return err
	}

	d.Logger.Debug("opening sqlite database", slog.String("path", cfg.Path))

	if err := d.OpenDB(ctx, "sqlite", dsn, cfg); err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return nil
}

// buildSQLiteDSN builds a modernc.org/sqlite URI with per-connection pragmas.
func buildSQLiteDSN(cfg core.DataSourceConfig) (string, error) {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		return "", fmt.Errorf("sqlite data source %q has no path", cfg.Name)
	}

	busy, err := strconv.Atoi(cfg.Option("busy_timeout", strconv.Itoa(DefaultBusyTimeoutMS)))
	if err != nil || busy < 0 {
		return "", fmt.Errorf("invalid busy_timeout %q for data source %q", cfg.Option("busy_timeout", ""), cfg.Name)
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
	q.Add("_pragma", "foreign_keys("+cfg.Option("foreign_keys", "1")+")")
	if mode := cfg.Option("journal_mode", ""); mode != "" {
		q.Add("_pragma", "journal_mode("+mode+")")
	}

	if path == MemoryPath {
		q.Set("mode", "memory")
		q.Set("cache", "shared")
		name := cfg.Name
		if name == "" {
			name = "leaporm"
		}
		return "file:" + url.PathEscape(name) + "?" + q.Encode(), nil
	}
	// '?' and '#' in the file name would otherwise start the query or fragment.
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode(), nil
}

// Classify maps SQLite result codes to the core error taxonomy.
func (d *Driver) Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch code & 0xff { // primary result code
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &core.ConflictError{Code: strconv.Itoa(code), Err: err}
		case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return &core.ConnectionError{Op: op, Err: err}
		}
		return err
	}

	return driver.ClassifyCommon(op, err)
}
