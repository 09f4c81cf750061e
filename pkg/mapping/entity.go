// Package mapping translates between typed entities and relational rows.
//
// Entities are registered once with explicit, typed field accessors; no
// runtime reflection is involved:
//
//	var Users = mapping.MustRegister("users",
//		mapping.Field("ID", "id", func(u *User) *int64 { return &u.ID }, mapping.PrimaryKey(), mapping.AutoIncrement()),
//		mapping.Field("Email", "email", func(u *User) *string { return &u.Email }, mapping.Unique(), mapping.Length(120)),
//		mapping.Pointer("Nickname", "nickname", func(u *User) **string { return &u.Nickname }),
//	)
package mapping

import (
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// ColumnValue is one column of a Row.
type ColumnValue struct {
	Column string
	Value  any
}

// Row is an ordered list of column values in descriptor order.
type Row []ColumnValue

// Columns returns the column names of the row.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, cv := range r {
		cols[i] = cv.Column
	}
	return cols
}

// Values returns the values of the row.
func (r Row) Values() []any {
	vals := make([]any, len(r))
	for i, cv := range r {
		vals[i] = cv.Value
	}
	return vals
}

// Without returns the row minus the named column.
func (r Row) Without(column string) Row {
	out := make(Row, 0, len(r))
	for _, cv := range r {
		if cv.Column != column {
			out = append(out, cv)
		}
	}
	return out
}

// Get returns the value of a column.
func (r Row) Get(column string) (any, bool) {
	for _, cv := range r {
		if cv.Column == column {
			return cv.Value, true
		}
	}
	return nil, false
}

// Entity maps values of type T to rows of one table.
type Entity[T any] struct {
	desc   *Descriptor
	fields []FieldDef[T]
}

// Register builds the mapping for T. It fails when the table is empty, when
// there is not exactly one primary key or when field or column names repeat.
func Register[T any](table string, fields ...FieldDef[T]) (*Entity[T], error) {
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = f.column()
	}
	desc, err := newDescriptor(table, cols)
	if err != nil {
		return nil, err
	}
	return &Entity[T]{desc: desc, fields: fields}, nil
}

// MustRegister is like Register but panics on error. Intended for package-level vars.
func MustRegister[T any](table string, fields ...FieldDef[T]) *Entity[T] {
	e, err := Register[T](table, fields...)
	if err != nil {
		panic(err)
	}
	return e
}

// Descriptor returns the table mapping.
func (e *Entity[T]) Descriptor() *Descriptor { return e.desc }

// Table returns the table name.
func (e *Entity[T]) Table() string { return e.desc.Table }

// ToRow converts an entity into its row, validating every field. All
// violations are reported together in a *core.ValidationError.
func (e *Entity[T]) ToRow(entity *T) (Row, error) {
	if entity == nil {
		return nil, &core.ValidationError{Table: e.desc.Table, Fields: []core.FieldError{{Reason: "entity is nil"}}}
	}

	row := make(Row, 0, len(e.fields))
	var violations []core.FieldError
	for _, f := range e.fields {
		col := f.column()
		v, err := f.get(entity)
		if err != nil {
			violations = append(violations, core.FieldError{Field: col.Field, Column: col.Name, Reason: err.Error()})
			continue
		}
		if reason := e.validate(f, col, entity, v); reason != "" {
			violations = append(violations, core.FieldError{Field: col.Field, Column: col.Name, Reason: reason})
			continue
		}
		row = append(row, ColumnValue{Column: col.Name, Value: v})
	}

	if len(violations) > 0 {
		return nil, &core.ValidationError{Table: e.desc.Table, Fields: violations}
	}
	return row, nil
}

func (e *Entity[T]) validate(f FieldDef[T], col Column, entity *T, v any) string {
	if v == nil {
		if !col.Nullable && !col.AutoIncrement {
			return "must not be null"
		}
		return ""
	}
	if f.required() && f.zero(entity) && !col.AutoIncrement {
		return "is required"
	}
	if col.Length > 0 {
		if n := valueLength(v); n > col.Length {
			return fmt.Sprintf("length %d exceeds maximum %d", n, col.Length)
		}
	}
	for _, check := range f.checks() {
		if err := check(v); err != nil {
			return err.Error()
		}
	}
	return ""
}

// FromRow hydrates a new T from a column-name keyed map. Every mapped column
// must be present; extra keys are ignored.
func (e *Entity[T]) FromRow(values map[string]any) (*T, error) {
	entity := new(T)
	for _, f := range e.fields {
		col := f.column()
		raw, ok := values[col.Name]
		if !ok {
			return nil, &core.MappingError{Table: e.desc.Table, Column: col.Name, Err: fmt.Errorf("column missing from result")}
		}
		if err := f.set(entity, raw); err != nil {
			return nil, &core.MappingError{Table: e.desc.Table, Column: col.Name, Err: err}
		}
	}
	return entity, nil
}

// ScanRows reads every remaining row of rows. Values are matched to fields by
// result-set column name, so column order and extra columns do not matter.
// The caller closes rows.
func (e *Entity[T]) ScanRows(rows *sql.Rows) ([]*T, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, &core.MappingError{Table: e.desc.Table, Err: err}
	}

	var out []*T
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, &core.MappingError{Table: e.desc.Table, Err: err}
		}
		values := make(map[string]any, len(cols))
		for i, c := range cols {
			values[c] = raw[i]
		}
		entity, err := e.FromRow(values)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Key returns the canonical primary key value of entity.
func (e *Entity[T]) Key(entity *T) (any, error) {
	return e.fields[e.desc.pk].get(entity)
}

// KeyIsZero reports whether the primary key holds its zero value.
func (e *Entity[T]) KeyIsZero(entity *T) bool {
	return e.fields[e.desc.pk].zero(entity)
}

// SetKey coerces a generated key into the primary key field.
func (e *Entity[T]) SetKey(entity *T, raw any) error {
	if err := e.fields[e.desc.pk].set(entity, raw); err != nil {
		return &core.MappingError{Table: e.desc.Table, Column: e.desc.PrimaryKey().Name, Err: err}
	}
	return nil
}

// CanonicalKey converts a caller-supplied key into the value bound for the
// primary key column.
func (e *Entity[T]) CanonicalKey(id any) (any, error) {
	probe := new(T)
	if err := e.SetKey(probe, id); err != nil {
		return nil, err
	}
	return e.Key(probe)
}
