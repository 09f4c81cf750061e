// Package sqlite provides a SQLite database driver for leaporm, backed by the
// pure-Go modernc.org/sqlite.
//
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/leaporm/pkg/drivers/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

func init() {
	driver.Register(core.DialectSQLite, func(logger *slog.Logger) driver.Driver { return New(logger) })
}
