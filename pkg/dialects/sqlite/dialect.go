// Package sqlite provides the SQLite SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlite

import (
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

// Config is the SQLite dialect configuration.
var Config = &core.DialectConfig{
	Name:        core.DialectSQLite,
	Placeholder: core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormCaseInsensitive,
	},
}

// SQLite uses type affinity; declared types only pick the affinity.
var columnTypes = map[core.Type]string{
	core.TypeString:  "TEXT",
	core.TypeInt:     "INTEGER",
	core.TypeFloat:   "REAL",
	core.TypeBool:    "BOOLEAN",
	core.TypeTime:    "DATETIME",
	core.TypeBytes:   "BLOB",
	core.TypeUUID:    "TEXT",
	core.TypeDecimal: "TEXT",
}

// SQLite is the SQLite dialect.
// BEGIN IMMEDIATE takes the write lock up front; concurrent writers wait on busy_timeout.
var SQLite = dialect.New(Config).
	Transactions("BEGIN IMMEDIATE", "COMMIT", "ROLLBACK").
	ColumnTypes(columnTypes).
	AutoIncrementKey("INTEGER PRIMARY KEY AUTOINCREMENT").
	ColumnsQuery("SELECT name FROM pragma_table_info(?)").
	UnboundedLimit("-1").
	Build()
