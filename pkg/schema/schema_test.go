package schema

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaporm/internal/testutil"
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
	_ "github.com/leapstack-labs/leaporm/pkg/drivers/sqlite"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
	"github.com/leapstack-labs/leaporm/pkg/orm"
	"github.com/leapstack-labs/leaporm/pkg/statement"
	"github.com/leapstack-labs/leaporm/pkg/tx"
)

type post struct {
	ID    int64
	Title string
	Body  *string
	Views int
}

func openDB(t *testing.T) *orm.DB {
	t.Helper()
	ctx := context.Background()
	db, err := orm.Open(ctx, core.DataSourceConfig{
		Name:    "schema",
		Dialect: "sqlite",
		Path:    filepath.Join(t.TempDir(), "schema.db"),
		Pool:    core.PoolConfig{Max: 2, AcquireTimeout: time.Second},
	}, orm.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })
	return db
}

func postsV1() *mapping.Entity[post] {
	return mapping.MustRegister("posts",
		mapping.Field("ID", "id", func(p *post) *int64 { return &p.ID }, mapping.PrimaryKey(), mapping.AutoIncrement()),
		mapping.Field("Title", "title", func(p *post) *string { return &p.Title }, mapping.Length(200)),
	)
}

func postsV2() *mapping.Entity[post] {
	return mapping.MustRegister("posts",
		mapping.Field("ID", "id", func(p *post) *int64 { return &p.ID }, mapping.PrimaryKey(), mapping.AutoIncrement()),
		mapping.Field("Title", "title", func(p *post) *string { return &p.Title }, mapping.Length(200)),
		mapping.Pointer("Body", "body", func(p *post) **string { return &p.Body }),
		mapping.Field("Views", "views", func(p *post) *int { return &p.Views }),
	)
}

func TestEnsure_CreatesThenAddsColumns(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	res, err := Ensure(ctx, db, postsV1().Descriptor())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Changed())

	res, err = Ensure(ctx, db, postsV1().Descriptor())
	require.NoError(t, err)
	assert.False(t, res.Changed(), "second run is a no-op")

	res, err = Ensure(ctx, db, postsV2().Descriptor())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"body", "views"}, res.Added)

	res, err = Ensure(ctx, db, postsV2().Descriptor())
	require.NoError(t, err)
	assert.False(t, res.Changed())
}

func TestEnsureAll(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	type tag struct{ Name string }
	tags := mapping.MustRegister("tags",
		mapping.Field("Name", "name", func(g *tag) *string { return &g.Name }, mapping.PrimaryKey()))

	reg := mapping.NewRegistry()
	require.NoError(t, reg.Add(postsV1(), tags))
	reg.Seal()

	results, err := EnsureAll(ctx, db, reg)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "posts", results[0].Table)
	assert.True(t, results[0].Created)
	assert.Equal(t, "tags", results[1].Table)
	assert.True(t, results[1].Created)
}

func TestEnsure_DialectWithoutCatalogQuery(t *testing.T) {
	// Every registered dialect lists columns; the guard only protects custom ones.
	_, err := existingColumns(context.Background(), nil, dialect.NewDialect("bare").Build(), "t")
	require.Error(t, err)
}

func TestEnsure_MatchesExistingColumnsByDialectCase(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	// A table created outside leaporm with upper-case column names.
	err := db.Run(ctx, func(s *tx.Scope) error {
		_, err := s.Exec(ctx, statement.Statement{SQL: `CREATE TABLE posts (ID INTEGER PRIMARY KEY, TITLE TEXT)`})
		return err
	})
	require.NoError(t, err)

	res, err := Ensure(ctx, db, postsV2().Descriptor())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"body", "views"}, res.Added, "ID and TITLE already match id and title")
}
