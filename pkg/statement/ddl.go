package statement

import (
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
)

// CreateTable builds CREATE TABLE IF NOT EXISTS for a descriptor.
func CreateTable(d *dialect.Dialect, desc *mapping.Descriptor) (Statement, error) {
	b := newBuilder(d)
	b.write("CREATE TABLE IF NOT EXISTS ")
	b.ident(desc.Table)
	b.write(" (")
	for i, col := range desc.Columns() {
		if i > 0 {
			b.write(", ")
		}
		def, err := columnDefinition(d, col)
		if err != nil {
			return Statement{}, fmt.Errorf("statement: create table %s: %w", desc.Table, err)
		}
		b.ident(col.Name)
		b.write(" ", def)
	}
	b.write(")")
	return b.statement(), nil
}

// AddColumn builds ALTER TABLE ... ADD COLUMN for a column missing from an
// existing table. The column is added nullable and without UNIQUE; the mapper
// still enforces NOT NULL on writes.
func AddColumn(d *dialect.Dialect, table string, col mapping.Column) (Statement, error) {
	if col.PrimaryKey {
		return Statement{}, fmt.Errorf("statement: cannot add primary key column %s to existing table %s", col.Name, table)
	}
	typ, err := d.ColumnType(col.Type, col.Length)
	if err != nil {
		return Statement{}, fmt.Errorf("statement: add column %s.%s: %w", table, col.Name, err)
	}
	b := newBuilder(d)
	b.write("ALTER TABLE ")
	b.ident(table)
	b.write(" ADD COLUMN ")
	b.ident(col.Name)
	b.write(" ", typ)
	return b.statement(), nil
}

func columnDefinition(d *dialect.Dialect, col mapping.Column) (string, error) {
	if col.AutoIncrement {
		if def := d.AutoIncrementKey(); def != "" {
			return def, nil
		}
		return "", fmt.Errorf("dialect %s has no auto-increment key", d.Name)
	}

	def, err := d.ColumnType(col.Type, col.Length)
	if err != nil {
		return "", err
	}
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.PrimaryKey {
		def += " PRIMARY KEY"
	} else if col.Unique {
		def += " UNIQUE"
	}
	return def, nil
}
