// Package mysql provides a MySQL database driver for leaporm.
//
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/leaporm/pkg/drivers/mysql"
package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

func init() {
	driver.Register(core.DialectMySQL, func(logger *slog.Logger) driver.Driver { return New(logger) })
}
