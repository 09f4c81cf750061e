package core

// Dialect identifiers accepted in DataSourceConfig.Dialect.
const (
	DialectMySQL      = "mysql"
	DialectPostgreSQL = "postgresql"
	DialectSQLite     = "sqlite"
)

// dialectAliases maps alternate spellings to their canonical identifier.
var dialectAliases = map[string]string{
	"postgres": DialectPostgreSQL,
	"pg":       DialectPostgreSQL,
	"sqlite3":  DialectSQLite,
	"mariadb":  DialectMySQL,
}

// CanonicalDialect returns the canonical dialect identifier for name.
// Unknown names are returned unchanged so callers can report them.
func CanonicalDialect(name string) string {
	if canonical, ok := dialectAliases[name]; ok {
		return canonical
	}
	return name
}

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data; the runtime behavior lives in pkg/dialect.Dialect.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "mysql", "postgresql")
	Name string

	// Identifiers defines quoting and normalization rules
	Identifiers IdentifierConfig

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// DefaultPort is used when a data source leaves the port empty
	DefaultPort int

	// Returning is true when INSERT ... RETURNING is used to read generated keys
	Returning bool
}

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (PostgreSQL).
	NormLowercase NormalizationStrategy = iota
	// NormCaseSensitive preserves identifier case exactly (MySQL on Linux).
	NormCaseSensitive
	// NormCaseInsensitive compares identifiers case-insensitively (SQLite).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `
	QuoteEnd      string                // End quote character (usually same as Quote)
	Escape        string                // Escape sequence for the quote inside a name: "", ``
	Normalization NormalizationStrategy // How unquoted identifiers are normalized
}
