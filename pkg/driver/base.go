package driver

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// ErrNotConnected is returned by Open before Connect succeeded.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLDriver provides common database/sql functionality for drivers.
// Embed this struct in concrete driver implementations to get standard
// Open, Close and connection-failure classification.
//
// The embedded *sql.DB is used only as a connector: it keeps no idle
// connections, so closing a Conn closes the physical connection and the
// connection pool stays the single owner of connection lifetimes.
type BaseSQLDriver struct {
	DB     *sql.DB
	Cfg    core.DataSourceConfig
	Logger *slog.Logger
}

// OpenDB opens the connector for driverName and verifies it with a ping.
func (b *BaseSQLDriver) OpenDB(ctx context.Context, driverName, dsn string, cfg core.DataSourceConfig) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}
	return b.Attach(ctx, db, cfg)
}

// Attach adopts an already opened *sql.DB as connector.
func (b *BaseSQLDriver) Attach(ctx context.Context, db *sql.DB, cfg core.DataSourceConfig) error {
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &core.ConnectionError{Op: "connect " + cfg.Name, Err: err}
	}

	b.DB = db
	b.Cfg = cfg
	return nil
}

// Open opens a new physical connection.
func (b *BaseSQLDriver) Open(ctx context.Context) (Conn, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	conn, err := b.DB.Conn(ctx)
	if err != nil {
		return nil, &core.ConnectionError{Op: "open", Err: err}
	}
	return conn, nil
}

// Close closes the connector.
func (b *BaseSQLDriver) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connector", slog.String("datasource", b.Cfg.Name))
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the connector is established.
func (b *BaseSQLDriver) IsConnected() bool {
	return b.DB != nil
}

// ClassifyCommon recognizes connection failures shared by every database/sql
// driver. Context cancellation is returned unchanged; it is the caller's
// decision, not a broken connection.
func ClassifyCommon(op string, err error) error {
	if err == nil {
		return nil
	}
	var connErr *core.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsConnectionFailure(err) {
		return &core.ConnectionError{Op: op, Err: err}
	}
	return err
}

// IsConnectionFailure reports whether err means the connection is unusable.
func IsConnectionFailure(err error) bool {
	if errors.Is(err, sqldriver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
