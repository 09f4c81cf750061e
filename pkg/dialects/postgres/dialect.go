// Package postgres defines the PostgreSQL dialect. It has no driver
// dependency; pkg/drivers/postgres pairs it with pgx or lib/pq.
package postgres

import (
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
)

func init() {
	dialect.Register(Postgres)
}

// Config is the PostgreSQL dialect configuration. Unquoted identifiers fold
// to lower case, so the builder always quotes.
var Config = &core.DialectConfig{
	Name:        core.DialectPostgreSQL,
	Placeholder: core.PlaceholderDollar,
	DefaultPort: 5432,
	Returning:   true,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormLowercase,
	},
}

var columnTypes = map[core.Type]string{
	core.TypeString:  "VARCHAR(%d)",
	core.TypeInt:     "BIGINT",
	core.TypeFloat:   "DOUBLE PRECISION",
	core.TypeBool:    "BOOLEAN",
	core.TypeTime:    "TIMESTAMPTZ",
	core.TypeBytes:   "BYTEA",
	core.TypeUUID:    "UUID",
	core.TypeDecimal: "NUMERIC(38,10)",
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.New(Config).
	Transactions("BEGIN", "COMMIT", "ROLLBACK").
	ColumnTypes(columnTypes).
	AutoIncrementKey("BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY").
	ColumnsQuery("SELECT column_name FROM information_schema.columns " +
		"WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position").
	Build()
