// Package repository provides typed CRUD over one registered entity.
//
// Each call runs in its own single-operation transaction unless the
// repository is bound to a caller-managed scope with In:
//
//	users := repository.New(db, Users)
//	err := db.Run(ctx, func(s *tx.Scope) error {
//		if err := users.In(s).Save(ctx, alice); err != nil {
//			return err
//		}
//		return accounts.In(s).Save(ctx, aliceAccount)
//	})
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
	"github.com/leapstack-labs/leaporm/pkg/orm"
	"github.com/leapstack-labs/leaporm/pkg/query"
	"github.com/leapstack-labs/leaporm/pkg/statement"
	"github.com/leapstack-labs/leaporm/pkg/tx"
)

// ErrUnknownColumn is returned when a query names a column the entity does not map.
var ErrUnknownColumn = errors.New("unknown column")

// Repository reads and writes values of T.
type Repository[T any] struct {
	db     *orm.DB
	entity *mapping.Entity[T]
	scope  *tx.Scope
}

// New returns a repository for entity on db.
func New[T any](db *orm.DB, entity *mapping.Entity[T]) *Repository[T] {
	return &Repository[T]{db: db, entity: entity}
}

// In returns a copy of the repository whose calls run inside scope. The scope
// must have been begun; its owner commits or rolls it back.
func (r *Repository[T]) In(scope *tx.Scope) *Repository[T] {
	return &Repository[T]{db: r.db, entity: r.entity, scope: scope}
}

// Entity returns the mapping the repository uses.
func (r *Repository[T]) Entity() *mapping.Entity[T] { return r.entity }

func (r *Repository[T]) run(ctx context.Context, fn func(s *tx.Scope) error) error {
	if r.scope != nil {
		switch st := r.scope.State(); {
		case st == tx.NotStarted:
			return tx.ErrNotStarted
		case st.Terminal():
			return core.ErrTxDone
		}
	}
	return r.db.Coordinator().Run(ctx, r.scope, fn)
}

func (r *Repository[T]) table() string { return r.entity.Table() }

func (r *Repository[T]) keyQuery(key any) *query.Query {
	return query.New().Where(query.Eq(r.entity.Descriptor().PrimaryKey().Name, key))
}

// Save writes entity. An auto-increment key holding its zero value means the
// row is new: it is inserted and the generated key is written back. Otherwise
// the row is updated by key, and inserted when no row matched.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	row, err := r.entity.ToRow(entity)
	if err != nil {
		return err
	}
	pk := r.entity.Descriptor().PrimaryKey()
	if pk.AutoIncrement && r.entity.KeyIsZero(entity) {
		return r.run(ctx, func(s *tx.Scope) error {
			return r.insertGenerated(ctx, s, entity, row.Without(pk.Name))
		})
	}

	return r.run(ctx, func(s *tx.Scope) error {
		found, err := r.updateRow(ctx, s, row)
		if err != nil || found {
			return err
		}
		return r.insertRow(ctx, s, row)
	})
}

// Insert writes entity as a new row. A zero auto-increment key is generated
// by the database and written back.
func (r *Repository[T]) Insert(ctx context.Context, entity *T) error {
	row, err := r.entity.ToRow(entity)
	if err != nil {
		return err
	}
	pk := r.entity.Descriptor().PrimaryKey()
	return r.run(ctx, func(s *tx.Scope) error {
		if pk.AutoIncrement && r.entity.KeyIsZero(entity) {
			return r.insertGenerated(ctx, s, entity, row.Without(pk.Name))
		}
		return r.insertRow(ctx, s, row)
	})
}

// Update rewrites the row with entity's key. It fails with core.ErrNotFound
// when no such row exists.
func (r *Repository[T]) Update(ctx context.Context, entity *T) error {
	row, err := r.entity.ToRow(entity)
	if err != nil {
		return err
	}
	var found bool
	err = r.run(ctx, func(s *tx.Scope) error {
		var err error
		found, err = r.updateRow(ctx, s, row)
		return err
	})
	if err != nil {
		return err
	}
	if !found {
		key, _ := row.Get(r.entity.Descriptor().PrimaryKey().Name)
		return r.notFound(key)
	}
	return nil
}

// FindByID loads the row with the given key. id is coerced to the key type.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	key, err := r.entity.CanonicalKey(id)
	if err != nil {
		return nil, err
	}
	found, err := r.find(ctx, r.keyQuery(key).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, r.notFound(key)
	}
	return found[0], nil
}

// FindAll loads the rows matching q; a nil q loads every row. Columns in q
// may be given by column or field name.
func (r *Repository[T]) FindAll(ctx context.Context, q *query.Query) ([]*T, error) {
	resolved, err := r.resolve(q)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, resolved)
}

// Count returns the number of rows matching q.
func (r *Repository[T]) Count(ctx context.Context, q *query.Query) (int64, error) {
	resolved, err := r.resolve(q)
	if err != nil {
		return 0, err
	}
	stmt, err := statement.Count(r.db.Dialect(), r.table(), resolved)
	if err != nil {
		return 0, err
	}

	var n int64
	err = r.run(ctx, func(s *tx.Scope) error {
		return s.Query(ctx, stmt, func(rows *sql.Rows) error {
			if !rows.Next() {
				if err := rows.Err(); err != nil {
					return err
				}
				return &core.MappingError{Table: r.table(), Err: errors.New("count returned no row")}
			}
			return rows.Scan(&n)
		})
	})
	return n, err
}

// Delete removes the row with entity's key.
func (r *Repository[T]) Delete(ctx context.Context, entity *T) error {
	key, err := r.entity.Key(entity)
	if err != nil {
		return &core.MappingError{Table: r.table(), Column: r.entity.Descriptor().PrimaryKey().Name, Err: err}
	}
	return r.deleteKey(ctx, key)
}

// DeleteByID removes the row with the given key. It fails with
// core.ErrNotFound when no row was deleted.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) error {
	key, err := r.entity.CanonicalKey(id)
	if err != nil {
		return err
	}
	return r.deleteKey(ctx, key)
}

func (r *Repository[T]) deleteKey(ctx context.Context, key any) error {
	stmt, err := statement.Delete(r.db.Dialect(), r.table(), r.keyQuery(key))
	if err != nil {
		return err
	}
	var n int64
	err = r.run(ctx, func(s *tx.Scope) error {
		res, err := s.Exec(ctx, stmt)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return r.notFound(key)
	}
	return nil
}

func (r *Repository[T]) find(ctx context.Context, q *query.Query) ([]*T, error) {
	stmt, err := statement.Select(r.db.Dialect(), r.table(), r.entity.Descriptor().ColumnNames(), q)
	if err != nil {
		return nil, err
	}
	var out []*T
	err = r.run(ctx, func(s *tx.Scope) error {
		return s.Query(ctx, stmt, func(rows *sql.Rows) error {
			var err error
			out, err = r.entity.ScanRows(rows)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// updateRow updates the non-key columns of row by key and reports whether a row matched.
func (r *Repository[T]) updateRow(ctx context.Context, s *tx.Scope, row mapping.Row) (bool, error) {
	pk := r.entity.Descriptor().PrimaryKey().Name
	key, _ := row.Get(pk)
	rest := row.Without(pk)

	if len(rest) == 0 {
		// Key-only entity: nothing to update, only existence matters.
		n, err := r.In(s).Count(ctx, r.keyQuery(key))
		return n > 0, err
	}

	stmt, err := statement.Update(r.db.Dialect(), r.table(), rest.Columns(), rest.Values(), r.keyQuery(key))
	if err != nil {
		return false, err
	}
	res, err := s.Exec(ctx, stmt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository[T]) insertRow(ctx context.Context, s *tx.Scope, row mapping.Row) error {
	stmt, err := statement.Insert(r.db.Dialect(), r.table(), row.Columns(), row.Values(), "")
	if err != nil {
		return err
	}
	_, err = s.Exec(ctx, stmt)
	return err
}

// insertGenerated inserts row without its key column and writes the
// database-generated key back into entity.
func (r *Repository[T]) insertGenerated(ctx context.Context, s *tx.Scope, entity *T, row mapping.Row) error {
	d := r.db.Dialect()
	pk := r.entity.Descriptor().PrimaryKey().Name

	if d.Returning {
		stmt, err := statement.Insert(d, r.table(), row.Columns(), row.Values(), pk)
		if err != nil {
			return err
		}
		var generated any
		err = s.Query(ctx, stmt, func(rows *sql.Rows) error {
			if !rows.Next() {
				if err := rows.Err(); err != nil {
					return err
				}
				return &core.MappingError{Table: r.table(), Column: pk, Err: errors.New("insert returned no key")}
			}
			return rows.Scan(&generated)
		})
		if err != nil {
			return err
		}
		return r.entity.SetKey(entity, generated)
	}

	stmt, err := statement.Insert(d, r.table(), row.Columns(), row.Values(), "")
	if err != nil {
		return err
	}
	res, err := s.Exec(ctx, stmt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read generated key of %s: %w", r.table(), err)
	}
	return r.entity.SetKey(entity, id)
}

// resolve maps field names in q to column names and rejects unknown columns.
func (r *Repository[T]) resolve(q *query.Query) (*query.Query, error) {
	desc := r.entity.Descriptor()
	return q.Resolve(func(name string) (string, error) {
		col, ok := desc.Lookup(name)
		if !ok {
			return "", fmt.Errorf("%s: %w %q", desc.Table, ErrUnknownColumn, name)
		}
		return col.Name, nil
	})
}

func (r *Repository[T]) notFound(key any) error {
	return fmt.Errorf("%s %v: %w", r.table(), key, core.ErrNotFound)
}
