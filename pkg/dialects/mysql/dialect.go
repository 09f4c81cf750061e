// Package mysql provides the MySQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package mysql

import (
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
}

// Config is the MySQL dialect configuration.
var Config = &core.DialectConfig{
	Name:        core.DialectMySQL,
	Placeholder: core.PlaceholderQuestion,
	DefaultPort: 3306,
	Identifiers: core.IdentifierConfig{
		Quote:         "`",
		QuoteEnd:      "`",
		Escape:        "``",
		Normalization: core.NormCaseInsensitive, // column names never differ only by case
	},
}

var columnTypes = map[core.Type]string{
	core.TypeString:  "VARCHAR(%d)",
	core.TypeInt:     "BIGINT",
	core.TypeFloat:   "DOUBLE",
	core.TypeBool:    "TINYINT(1)",
	core.TypeTime:    "DATETIME(6)",
	core.TypeBytes:   "LONGBLOB",
	core.TypeUUID:    "CHAR(36)",
	core.TypeDecimal: "DECIMAL(38,10)",
}

// MySQL is the MySQL dialect.
var MySQL = dialect.New(Config).
	Transactions("START TRANSACTION", "COMMIT", "ROLLBACK").
	ColumnTypes(columnTypes).
	AutoIncrementKey("BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY").
	ColumnsQuery("SELECT column_name FROM information_schema.columns " +
		"WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position").
	UnboundedLimit("18446744073709551615").
	Build()
