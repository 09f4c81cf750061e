package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/dialects/mysql"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// MySQL server error numbers classified as conflicts.
const (
	errDupEntry         = 1062
	errLockWaitTimeout  = 1205
	errLockDeadlock     = 1213
	errRowIsReferenced  = 1451
	errNoReferencedRow  = 1452
	errRowIsReferenced2 = 1217
	errNoReferencedRow2 = 1216
)

// Options mapped onto mysqldriver.Config fields instead of raw params.
var reservedOptions = map[string]bool{"tls": true, "sslmode": true, "collation": true, "connect_timeout": true}

// Driver implements the driver.Driver interface for MySQL.
type Driver struct {
	driver.BaseSQLDriver
}

// New creates a new MySQL driver instance.
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
	return core.DialectMySQL
}

// Dialect returns the MySQL dialect.
func (d *Driver) Dialect() *dialect.Dialect {
	return mysql.MySQL
}

// Connect opens the connector for MySQL.
func (d *Driver) Connect(ctx context.Context, cfg core.DataSourceConfig) error {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return err
	}

	d.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	if err := d.OpenDB(ctx, "mysql", dsn, cfg); err != nil {
		return fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return nil
}

// buildMySQLDSN constructs a go-sql-driver/mysql DSN. Times are parsed into
// time.Time in UTC.
func buildMySQLDSN(cfg core.DataSourceConfig) (string, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port <= 0 {
		port = mysql.Config.DefaultPort
	}

	c := mysqldriver.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Loc = time.UTC
	c.AllowNativePasswords = true
	c.ClientFoundRows = true // UPDATE reports matched rows, not changed rows
	c.Collation = cfg.Option("collation", c.Collation)

	if v := cfg.Option("connect_timeout", ""); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return "", fmt.Errorf("invalid connect_timeout %q: %w", v, err)
		}
		c.Timeout = timeout
	}

	// TLS
	switch mode := strings.ToLower(cfg.Option("tls", cfg.Option("sslmode", ""))); mode {
	case "true", "required", "require":
		c.TLSConfig = "true"
	case "skip-verify", "preferred":
		c.TLSConfig = "skip-verify"
	case "false", "disable", "":
		c.TLSConfig = "false"
	default:
		c.TLSConfig = mode
	}

	for k, v := range cfg.Options {
		if reservedOptions[k] || k == "driver" {
			continue
		}
		if c.Params == nil {
			c.Params = make(map[string]string)
		}
		c.Params[k] = v
	}

	return c.FormatDSN(), nil
}

// Classify maps go-sql-driver/mysql errors to the core error taxonomy.
func (d *Driver) Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDupEntry, errLockWaitTimeout, errLockDeadlock,
			errRowIsReferenced, errNoReferencedRow, errRowIsReferenced2, errNoReferencedRow2:
			return &core.ConflictError{Code: strconv.Itoa(int(myErr.Number)), Err: err}
		}
		return err
	}

	if errors.Is(err, mysqldriver.ErrInvalidConn) {
		return &core.ConnectionError{Op: op, Err: err}
	}

	return driver.ClassifyCommon(op, err)
}
