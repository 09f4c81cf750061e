// Package schema brings tables in line with registered entity descriptors.
//
// Ensure is additive only: it creates missing tables and adds missing
// columns. It never drops or alters existing columns and keeps no version
// history.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
	"github.com/leapstack-labs/leaporm/pkg/orm"
	"github.com/leapstack-labs/leaporm/pkg/statement"
	"github.com/leapstack-labs/leaporm/pkg/tx"
)

// Result reports what Ensure changed for one table.
type Result struct {
	Table   string
	Created bool
	Added   []string // columns added to an existing table
}

// Changed reports whether any DDL was issued.
func (r Result) Changed() bool { return r.Created || len(r.Added) > 0 }

// Ensure creates the table of desc when it does not exist, otherwise adds the
// columns it lacks. All DDL for one table runs in one scope.
func Ensure(ctx context.Context, db *orm.DB, desc *mapping.Descriptor) (Result, error) {
	d := db.Dialect()
	res := Result{Table: desc.Table}

	err := db.Run(ctx, func(s *tx.Scope) error {
		existing, err := existingColumns(ctx, s, d, desc.Table)
		if err != nil {
			return err
		}

		if len(existing) == 0 {
			stmt, err := statement.CreateTable(d, desc)
			if err != nil {
				return err
			}
			if _, err := s.Exec(ctx, stmt); err != nil {
				return err
			}
			res.Created = true
			return nil
		}

		for _, col := range desc.Columns() {
			if _, ok := existing[d.NormalizeName(col.Name)]; ok {
				continue
			}
			stmt, err := statement.AddColumn(d, desc.Table, col)
			if err != nil {
				return err
			}
			if _, err := s.Exec(ctx, stmt); err != nil {
				return err
			}
			res.Added = append(res.Added, col.Name)
		}
		return nil
	})
	if err != nil {
		return Result{Table: desc.Table}, fmt.Errorf("ensure table %s: %w", desc.Table, err)
	}

	switch {
	case res.Created:
		db.Logger().Info("table created", slog.String("table", desc.Table))
	case len(res.Added) > 0:
		db.Logger().Info("columns added", slog.String("table", desc.Table), slog.Any("columns", res.Added))
	}
	return res, nil
}

// EnsureAll runs Ensure for every descriptor of reg, in registration order,
// stopping at the first failure.
func EnsureAll(ctx context.Context, db *orm.DB, reg *mapping.Registry) ([]Result, error) {
	descs := reg.Descriptors()
	results := make([]Result, 0, len(descs))
	for _, desc := range descs {
		res, err := Ensure(ctx, db, desc)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// existingColumns lists the column names of table, folded by the dialect;
// empty when the table does not exist.
func existingColumns(ctx context.Context, s *tx.Scope, d *dialect.Dialect, table string) (map[string]struct{}, error) {
	q := d.ColumnsQuery()
	if q == "" {
		return nil, fmt.Errorf("dialect cannot list table columns")
	}
	cols := make(map[string]struct{})
	err := s.Query(ctx, statement.Statement{SQL: q, Args: []any{table}}, func(rows *sql.Rows) error {
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			cols[d.NormalizeName(name)] = struct{}{}
		}
		return rows.Err()
	})
	return cols, err
}
