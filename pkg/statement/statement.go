// Package statement compiles queries and row writes into parameterized SQL.
//
// Every value is bound through the dialect's placeholder style and every
// identifier is quoted by the dialect; no value is ever formatted into the
// SQL text. Clause composition is the same for all dialects.
package statement

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/query"
)

// Statement is SQL text plus its ordered arguments.
type Statement struct {
	SQL  string
	Args []any
}

// String renders the statement for logs. Arguments are counted, not printed.
func (s Statement) String() string {
	return fmt.Sprintf("%s [%d args]", s.SQL, len(s.Args))
}

var (
	errNoTable   = errors.New("statement: table name is required")
	errNoColumns = errors.New("statement: at least one column is required")
)

// builder accumulates SQL text and numbers placeholders as values are bound.
type builder struct {
	d    *dialect.Dialect
	sb   strings.Builder
	args []any
}

func newBuilder(d *dialect.Dialect) *builder {
	return &builder{d: d}
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) ident(name string) {
	b.sb.WriteString(b.d.QuoteIdentifier(name))
}

func (b *builder) bind(v any) {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.FormatPlaceholder(len(b.args)))
}

func (b *builder) identList(names []string) {
	for i, n := range names {
		if i > 0 {
			b.write(", ")
		}
		b.ident(n)
	}
}

func (b *builder) statement() Statement {
	return Statement{SQL: b.sb.String(), Args: b.args}
}

// where writes the WHERE clause of q, if any.
func (b *builder) where(q *query.Query) {
	preds := q.Predicates()
	if len(preds) == 0 {
		return
	}
	b.write(" WHERE ")
	for i, p := range preds {
		if i > 0 {
			b.write(" AND ")
		}
		b.predicate(p)
	}
}

func (b *builder) predicate(p query.Predicate) {
	switch {
	case p.Op() == query.OpIn:
		if len(p.Values()) == 0 {
			b.write("1 = 0")
			return
		}
		b.ident(p.Column())
		b.write(" IN (")
		for i, v := range p.Values() {
			if i > 0 {
				b.write(", ")
			}
			b.bind(v)
		}
		b.write(")")
	case p.Op().Unary():
		b.ident(p.Column())
		b.write(" ", p.Op().String())
	case p.Op() == query.OpEq && p.Value() == nil:
		// = NULL never matches
		b.ident(p.Column())
		b.write(" IS NULL")
	default:
		b.ident(p.Column())
		b.write(" ", p.Op().String(), " ")
		b.bind(p.Value())
	}
}

func (b *builder) orderAndPage(q *query.Query) {
	if orders := q.Orders(); len(orders) > 0 {
		b.write(" ORDER BY ")
		for i, o := range orders {
			if i > 0 {
				b.write(", ")
			}
			b.ident(o.Column)
			b.write(" ", o.Direction.String())
		}
	}

	limit, offset := q.LimitValue(), q.OffsetValue()
	switch {
	case limit > 0:
		b.write(" LIMIT ", strconv.Itoa(limit))
	case offset > 0 && b.d.UnboundedLimit() != "":
		b.write(" LIMIT ", b.d.UnboundedLimit())
	}
	if offset > 0 {
		b.write(" OFFSET ", strconv.Itoa(offset))
	}
}

func checkQuery(table string, q *query.Query) error {
	if strings.TrimSpace(table) == "" {
		return errNoTable
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("statement: invalid query: %w", err)
	}
	return nil
}

// Select builds SELECT columns FROM table with the filters, ordering and
// paging of q. A nil q selects every row; empty columns select *.
func Select(d *dialect.Dialect, table string, columns []string, q *query.Query) (Statement, error) {
	if err := checkQuery(table, q); err != nil {
		return Statement{}, err
	}
	b := newBuilder(d)
	b.write("SELECT ")
	if len(columns) == 0 {
		b.write("*")
	} else {
		b.identList(columns)
	}
	b.write(" FROM ")
	b.ident(table)
	b.where(q)
	b.orderAndPage(q)
	return b.statement(), nil
}

// Count builds SELECT COUNT(*) over the filters of q. Ordering and paging are ignored.
func Count(d *dialect.Dialect, table string, q *query.Query) (Statement, error) {
	if err := checkQuery(table, q); err != nil {
		return Statement{}, err
	}
	b := newBuilder(d)
	b.write("SELECT COUNT(*) FROM ")
	b.ident(table)
	b.where(q)
	return b.statement(), nil
}

// Insert builds a single-row INSERT. When returning is set the dialect must
// support RETURNING and the generated value of that column is selected.
func Insert(d *dialect.Dialect, table string, columns []string, values []any, returning string) (Statement, error) {
	if strings.TrimSpace(table) == "" {
		return Statement{}, errNoTable
	}
	if err := checkValues(columns, values); err != nil {
		return Statement{}, err
	}
	if returning != "" && !d.Returning {
		return Statement{}, fmt.Errorf("statement: dialect %s does not support RETURNING", d.Name)
	}

	b := newBuilder(d)
	b.write("INSERT INTO ")
	b.ident(table)
	b.write(" (")
	b.identList(columns)
	b.write(") VALUES (")
	for i, v := range values {
		if i > 0 {
			b.write(", ")
		}
		b.bind(v)
	}
	b.write(")")
	if returning != "" {
		b.write(" RETURNING ")
		b.ident(returning)
	}
	return b.statement(), nil
}

// Update builds UPDATE table SET ... restricted by the filters of q.
func Update(d *dialect.Dialect, table string, columns []string, values []any, q *query.Query) (Statement, error) {
	if err := checkQuery(table, q); err != nil {
		return Statement{}, err
	}
	if err := checkValues(columns, values); err != nil {
		return Statement{}, err
	}
	if err := checkNoPaging("UPDATE", q); err != nil {
		return Statement{}, err
	}

	b := newBuilder(d)
	b.write("UPDATE ")
	b.ident(table)
	b.write(" SET ")
	for i, c := range columns {
		if i > 0 {
			b.write(", ")
		}
		b.ident(c)
		b.write(" = ")
		b.bind(values[i])
	}
	b.where(q)
	return b.statement(), nil
}

// Delete builds DELETE FROM table restricted by the filters of q.
func Delete(d *dialect.Dialect, table string, q *query.Query) (Statement, error) {
	if err := checkQuery(table, q); err != nil {
		return Statement{}, err
	}
	if err := checkNoPaging("DELETE", q); err != nil {
		return Statement{}, err
	}
	b := newBuilder(d)
	b.write("DELETE FROM ")
	b.ident(table)
	b.where(q)
	return b.statement(), nil
}

func checkValues(columns []string, values []any) error {
	if len(columns) == 0 {
		return errNoColumns
	}
	if len(columns) != len(values) {
		return fmt.Errorf("statement: %d columns but %d values", len(columns), len(values))
	}
	return nil
}

func checkNoPaging(verb string, q *query.Query) error {
	if len(q.Orders()) > 0 || q.LimitValue() > 0 || q.OffsetValue() > 0 {
		return fmt.Errorf("statement: %s does not take ordering or paging", verb)
	}
	return nil
}
