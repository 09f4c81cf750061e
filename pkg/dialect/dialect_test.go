package dialect

import (
	"testing"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPlaceholder(t *testing.T) {
	question := NewDialect("q").Build()
	dollar := NewDialect("d").PlaceholderStyle(core.PlaceholderDollar).Build()

	tests := []struct {
		name  string
		d     *Dialect
		index int
		want  string
	}{
		{"question first", question, 1, "?"},
		{"question third", question, 3, "?"},
		{"dollar first", dollar, 1, "$1"},
		{"dollar twelfth", dollar, 12, "$12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.FormatPlaceholder(tt.index))
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	ansi := NewDialect("ansi").Build()
	backtick := NewDialect("bt").Identifiers("`", "`", "``", core.NormCaseSensitive).Build()

	tests := []struct {
		name  string
		d     *Dialect
		ident string
		want  string
	}{
		{"plain ansi", ansi, "users", `"users"`},
		{"embedded quote ansi", ansi, `we"ird`, `"we""ird"`},
		{"plain backtick", backtick, "order", "`order`"},
		{"embedded backtick", backtick, "a`b", "`a``b`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.QuoteIdentifier(tt.ident))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	lower := NewDialect("lower").Build()
	insensitive := NewDialect("insensitive").Identifiers(`"`, `"`, `""`, core.NormCaseInsensitive).Build()
	sensitive := NewDialect("sensitive").Identifiers("`", "`", "``", core.NormCaseSensitive).Build()

	assert.Equal(t, "users", lower.NormalizeName("Users"))
	assert.Equal(t, "users", insensitive.NormalizeName("USERS"))
	assert.Equal(t, "Users", sensitive.NormalizeName("Users"))
}

func TestColumnType(t *testing.T) {
	d := NewDialect("test").ColumnTypes(map[core.Type]string{
		core.TypeString: "VARCHAR(%d)",
		core.TypeInt:    "BIGINT",
	}).Build()

	got, err := d.ColumnType(core.TypeString, 64)
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR(64)", got)

	got, err = d.ColumnType(core.TypeString, 0)
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR(255)", got)

	got, err = d.ColumnType(core.TypeInt, 10)
	require.NoError(t, err)
	assert.Equal(t, "BIGINT", got, "length is ignored for types without a length parameter")

	_, err = d.ColumnType(core.TypeUUID, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uuid")
}

func TestTransactionStatements(t *testing.T) {
	d := NewDialect("test").Build()
	assert.Equal(t, "BEGIN", d.BeginStatement())
	assert.Equal(t, "COMMIT", d.CommitStatement())
	assert.Equal(t, "ROLLBACK", d.RollbackStatement())

	d = NewDialect("custom").Transactions("START TRANSACTION", "COMMIT", "ROLLBACK").Build()
	assert.Equal(t, "START TRANSACTION", d.BeginStatement())
}

func TestNewFromConfig(t *testing.T) {
	cfg := &core.DialectConfig{
		Name:        "cfg",
		Placeholder: core.PlaceholderDollar,
		DefaultPort: 5432,
		Returning:   true,
		Identifiers: core.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`},
	}
	d := New(cfg).Build()

	assert.Equal(t, "cfg", d.Name)
	assert.Equal(t, core.PlaceholderDollar, d.Placeholder)
	assert.Equal(t, 5432, d.DefaultPort)
	assert.True(t, d.Returning)
	assert.Equal(t, cfg.Identifiers, d.Identifiers)
	assert.Equal(t, "BEGIN", d.BeginStatement(), "transaction statements keep their defaults")
}

func TestRegistry(t *testing.T) {
	d := NewDialect("registry_test_dialect").Build()
	Register(d)

	got, ok := Get("REGISTRY_TEST_DIALECT")
	require.True(t, ok)
	assert.Same(t, d, got)
	assert.Contains(t, List(), "registry_test_dialect")

	_, err := Lookup("nope")
	var unknown *UnknownDialectError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)

	_, err = Lookup("")
	assert.ErrorIs(t, err, ErrDialectRequired)
}
