// Package query holds the dialect-free description of a filtered read.
//
// A Query is a conjunction of predicates plus ordering and paging. It is
// built fluently and compiled to SQL by package statement:
//
//	q := query.New().
//		Where(query.Eq("status", "active"), query.Gte("age", 18)).
//		OrderBy("created_at", query.Desc).
//		Limit(20)
package query

import (
	"errors"
	"fmt"
)

// Op is a predicate operator.
type Op int

const (
	OpEq Op = iota
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpIsNull
	OpNotNull
)

var opSymbols = map[Op]string{
	OpEq:      "=",
	OpLt:      "<",
	OpLte:     "<=",
	OpGt:      ">",
	OpGte:     ">=",
	OpIn:      "IN",
	OpIsNull:  "IS NULL",
	OpNotNull: "IS NOT NULL",
}

// String returns the SQL operator.
func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Unary reports whether the operator takes no value.
func (o Op) Unary() bool { return o == OpIsNull || o == OpNotNull }

// Predicate compares one column against a value. It is a sealed value built
// with Eq, Lt, Lte, Gt, Gte, In, IsNull and NotNull.
type Predicate struct {
	column string
	op     Op
	value  any
	values []any
}

// Column returns the column or field name the predicate filters on.
func (p Predicate) Column() string { return p.column }

// Op returns the operator.
func (p Predicate) Op() Op { return p.op }

// Value returns the comparison value of a binary predicate.
func (p Predicate) Value() any { return p.value }

// Values returns the set of an IN predicate.
func (p Predicate) Values() []any { return p.values }

// WithColumn returns a copy of p filtering on column.
func (p Predicate) WithColumn(column string) Predicate {
	p.column = column
	return p
}

// Eq matches rows where column equals value.
func Eq(column string, value any) Predicate { return Predicate{column: column, op: OpEq, value: value} }

// Lt matches rows where column is less than value.
func Lt(column string, value any) Predicate { return Predicate{column: column, op: OpLt, value: value} }

// Lte matches rows where column is at most value.
func Lte(column string, value any) Predicate {
	return Predicate{column: column, op: OpLte, value: value}
}

// Gt matches rows where column is greater than value.
func Gt(column string, value any) Predicate { return Predicate{column: column, op: OpGt, value: value} }

// Gte matches rows where column is at least value.
func Gte(column string, value any) Predicate {
	return Predicate{column: column, op: OpGte, value: value}
}

// In matches rows where column is one of values. An empty set matches nothing.
func In(column string, values ...any) Predicate {
	return Predicate{column: column, op: OpIn, values: append([]any(nil), values...)}
}

// IsNull matches rows where column is NULL.
func IsNull(column string) Predicate { return Predicate{column: column, op: OpIsNull} }

// NotNull matches rows where column is not NULL.
func NotNull(column string) Predicate { return Predicate{column: column, op: OpNotNull} }

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// String returns the SQL keyword.
func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Order is one ORDER BY term.
type Order struct {
	Column    string
	Direction Direction
}

// Query is a conjunction of predicates with optional ordering and paging.
// The zero value matches every row.
type Query struct {
	predicates []Predicate
	orders     []Order
	limit      int
	offset     int
}

// New returns an empty query.
func New() *Query { return &Query{} }

// Where adds predicates, joined with AND.
func (q *Query) Where(preds ...Predicate) *Query {
	q.predicates = append(q.predicates, preds...)
	return q
}

// OrderBy appends a sort term.
func (q *Query) OrderBy(column string, dir Direction) *Query {
	q.orders = append(q.orders, Order{Column: column, Direction: dir})
	return q
}

// Limit caps the number of rows. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Predicates returns the predicates in insertion order.
func (q *Query) Predicates() []Predicate {
	if q == nil {
		return nil
	}
	return q.predicates
}

// Orders returns the sort terms.
func (q *Query) Orders() []Order {
	if q == nil {
		return nil
	}
	return q.orders
}

// LimitValue returns the row limit, zero for none.
func (q *Query) LimitValue() int {
	if q == nil {
		return 0
	}
	return q.limit
}

// OffsetValue returns the row offset.
func (q *Query) OffsetValue() int {
	if q == nil {
		return 0
	}
	return q.offset
}

// Validate checks paging bounds and operator arity.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	var errs []error
	if q.limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", q.limit))
	}
	if q.offset < 0 {
		errs = append(errs, fmt.Errorf("offset must not be negative, got %d", q.offset))
	}
	for _, p := range q.predicates {
		if p.column == "" {
			errs = append(errs, fmt.Errorf("predicate %s has no column", p.op))
		}
		if _, ok := opSymbols[p.op]; !ok {
			errs = append(errs, fmt.Errorf("unknown operator %d on %s", int(p.op), p.column))
		}
	}
	for _, o := range q.orders {
		if o.Column == "" {
			errs = append(errs, errors.New("order term has no column"))
		}
	}
	return errors.Join(errs...)
}

// Resolve returns a copy of q whose column names are passed through fn.
// Repositories use it to map field names onto columns and reject unknown ones.
func (q *Query) Resolve(fn func(name string) (string, error)) (*Query, error) {
	if q == nil {
		return nil, nil
	}
	out := &Query{limit: q.limit, offset: q.offset}
	for _, p := range q.predicates {
		col, err := fn(p.column)
		if err != nil {
			return nil, err
		}
		out.predicates = append(out.predicates, p.WithColumn(col))
	}
	for _, o := range q.orders {
		col, err := fn(o.Column)
		if err != nil {
			return nil, err
		}
		out.orders = append(out.orders, Order{Column: col, Direction: o.Direction})
	}
	return out, nil
}
