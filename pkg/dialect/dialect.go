// Package dialect provides SQL dialect configuration for statement generation.
//
// This package contains the public contract for dialect definitions used by the
// statement builder, the transaction coordinator and schema management. Concrete
// dialect implementations are registered from pkg/dialects/*/ packages.
package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// DefaultStringLength is used for string columns declared without a length.
const DefaultStringLength = 255

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	Placeholder core.PlaceholderStyle // How to format query parameters
	DefaultPort int                   // Port used when a data source leaves it empty
	Returning   bool                  // INSERT ... RETURNING reads generated keys

	// Transaction control statements issued on the pinned connection
	beginStmt    string
	commitStmt   string
	rollbackStmt string

	// DDL
	columnTypes      map[core.Type]string // Semantic type -> column type (may contain %d for length)
	autoIncrementKey string               // Full column definition of an auto-increment primary key
	columnsQuery     string               // Lists column names of one table, single bound parameter

	// LIMIT value emitted when a query has OFFSET but no LIMIT; empty if OFFSET may stand alone
	unboundedLimit string
}

// NormalizeName folds an identifier for comparison with names read back from
// the catalog.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormLowercase, core.NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
// The statement builder quotes every identifier, so reserved words such as
// "order" or "user" are valid column names.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ` -> ``)
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// BeginStatement returns the statement that opens a transaction.
func (d *Dialect) BeginStatement() string { return d.beginStmt }

// CommitStatement returns the statement that commits a transaction.
func (d *Dialect) CommitStatement() string { return d.commitStmt }

// RollbackStatement returns the statement that rolls a transaction back.
func (d *Dialect) RollbackStatement() string { return d.rollbackStmt }

// ColumnType returns the column type used in DDL for a semantic type.
// length applies to types with a length parameter; zero uses DefaultStringLength.
func (d *Dialect) ColumnType(t core.Type, length int) (string, error) {
	tmpl, ok := d.columnTypes[t]
	if !ok {
		return "", fmt.Errorf("dialect %s has no column type for %s", d.Name, t)
	}
	if !strings.Contains(tmpl, "%d") {
		return tmpl, nil
	}
	if length <= 0 {
		length = DefaultStringLength
	}
	return fmt.Sprintf(tmpl, length), nil
}

// AutoIncrementKey returns the full column definition, after the column name,
// of an auto-increment primary key.
func (d *Dialect) AutoIncrementKey() string {
	return d.autoIncrementKey
}

// ColumnsQuery returns a query listing the column names of the table bound to
// its single parameter. An empty result means the table does not exist.
func (d *Dialect) ColumnsQuery() string {
	return d.columnsQuery
}

// UnboundedLimit returns the LIMIT value paired with a bare OFFSET, or "" when
// the dialect accepts OFFSET without LIMIT.
func (d *Dialect) UnboundedLimit() string {
	return d.unboundedLimit
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
// Defaults follow ANSI: double-quoted identifiers, ? placeholders, BEGIN/COMMIT/ROLLBACK.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: core.IdentifierConfig{
				Quote:         `"`,
				QuoteEnd:      `"`,
				Escape:        `""`,
				Normalization: core.NormLowercase,
			},
			beginStmt:    "BEGIN",
			commitStmt:   "COMMIT",
			rollbackStmt: "ROLLBACK",
			columnTypes:  make(map[core.Type]string),
		},
	}
}

// New creates a dialect builder from a DialectConfig.
func New(cfg *core.DialectConfig) *Builder {
	b := NewDialect(cfg.Name)
	b.dialect.Identifiers = cfg.Identifiers
	b.dialect.Placeholder = cfg.Placeholder
	b.dialect.DefaultPort = cfg.DefaultPort
	b.dialect.Returning = cfg.Returning
	return b
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// Transactions sets the begin, commit and rollback statements.
func (b *Builder) Transactions(begin, commit, rollback string) *Builder {
	b.dialect.beginStmt = begin
	b.dialect.commitStmt = commit
	b.dialect.rollbackStmt = rollback
	return b
}

// ColumnTypes registers DDL column types for semantic types.
func (b *Builder) ColumnTypes(types map[core.Type]string) *Builder {
	for t, name := range types {
		b.dialect.columnTypes[t] = name
	}
	return b
}

// AutoIncrementKey sets the column definition of an auto-increment primary key.
func (b *Builder) AutoIncrementKey(def string) *Builder {
	b.dialect.autoIncrementKey = def
	return b
}

// ColumnsQuery sets the catalog query listing a table's columns.
func (b *Builder) ColumnsQuery(query string) *Builder {
	b.dialect.columnsQuery = query
	return b
}

// UnboundedLimit sets the LIMIT value emitted before a bare OFFSET.
func (b *Builder) UnboundedLimit(limit string) *Builder {
	b.dialect.unboundedLimit = limit
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
