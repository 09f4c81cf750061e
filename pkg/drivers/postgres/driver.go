package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/lib/pq"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/dialects/postgres"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// database/sql driver names selectable through options.driver.
const (
	DriverPgx = "pgx"
	DriverPq  = "pq"
)

// Options consumed by the driver itself and never forwarded to the server.
var reservedOptions = map[string]bool{"driver": true, "sslmode": true}

// Driver implements the driver.Driver interface for PostgreSQL.
type Driver struct {
	driver.BaseSQLDriver
	sqlDriver string
}

// New creates a new PostgreSQL driver instance.
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
	return core.DialectPostgreSQL
}

// Dialect returns the PostgreSQL dialect.
func (d *Driver) Dialect() *dialect.Dialect {
	return postgres.Postgres
}

// Connect opens the connector for PostgreSQL. options.driver selects pgx
// (default) or lib/pq.
func (d *Driver) Connect(ctx context.Context, cfg core.DataSourceConfig) error {
	sqlDriver, err := sqlDriverName(cfg.Option("driver", DriverPgx))
	if err != nil {
		return err
	}

	d.Logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
		slog.String("driver", sqlDriver))

	if err := d.OpenDB(ctx, sqlDriver, buildPostgresDSN(cfg), cfg); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	d.sqlDriver = sqlDriver
	return nil
}

// SQLDriver returns the database/sql driver in use after Connect.
func (d *Driver) SQLDriver() string {
	return d.sqlDriver
}

// sqlDriverName maps options.driver to a registered database/sql driver name.
func sqlDriverName(option string) (string, error) {
	switch strings.ToLower(option) {
	case "", DriverPgx:
		return "pgx", nil
	case DriverPq, "postgres", "lib/pq":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported postgres driver %q (use %q or %q)", option, DriverPgx, DriverPq)
	}
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg core.DataSourceConfig) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = postgres.Config.DefaultPort
	}

	sslmode := cfg.Option("sslmode", "disable")

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnValue(host), port, dsnValue(cfg.Database), dsnValue(sslmode))

	if cfg.Username != "" {
		dsn += " user=" + dsnValue(cfg.Username)
	}
	if cfg.Password != "" {
		dsn += " password=" + dsnValue(cfg.Password)
	}

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		if !reservedOptions[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		dsn += " " + k + "=" + dsnValue(cfg.Options[k])
	}

	return dsn
}

// dsnValue quotes a keyword/value connection string value when needed.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Classify maps pgx and lib/pq errors to the core error taxonomy.
func (d *Driver) Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isConflictCode(pgErr.Code) {
			return &core.ConflictError{Code: pgErr.Code, Err: err}
		}
		// class 08: connection exception, 57P01..57P03: server shutting down
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") {
			return &core.ConnectionError{Op: op, Err: err}
		}
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if isConflictCode(code) {
			return &core.ConflictError{Code: code, Err: err}
		}
		if pqErr.Code.Class() == "08" || strings.HasPrefix(code, "57P0") {
			return &core.ConnectionError{Op: op, Err: err}
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return &core.ConnectionError{Op: op, Err: err}
	}

	return driver.ClassifyCommon(op, err)
}

// isConflictCode reports SQLSTATEs that abort a transaction through contention
// or integrity violations.
func isConflictCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "23"): // integrity_constraint_violation
		return true
	case code == "40001", code == "40P01", code == "55P03": // serialization, deadlock, lock_not_available
		return true
	default:
		return false
	}
}
