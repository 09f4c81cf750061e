package query

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpEq, "="},
		{OpLt, "<"},
		{OpLte, "<="},
		{OpGt, ">"},
		{OpGte, ">="},
		{OpIn, "IN"},
		{OpIsNull, "IS NULL"},
		{OpNotNull, "IS NOT NULL"},
		{Op(99), "Op(99)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestBuilders(t *testing.T) {
	q := New().
		Where(Eq("status", "active"), Gte("age", 18)).
		Where(In("role", "admin", "owner"), IsNull("deleted_at")).
		OrderBy("created_at", Desc).
		OrderBy("id", Asc).
		Limit(20).
		Offset(40)

	preds := q.Predicates()
	require.Len(t, preds, 4)
	assert.Equal(t, "status", preds[0].Column())
	assert.Equal(t, OpEq, preds[0].Op())
	assert.Equal(t, "active", preds[0].Value())
	assert.Equal(t, []any{"admin", "owner"}, preds[2].Values())
	assert.True(t, preds[3].Op().Unary())

	assert.Equal(t, []Order{{"created_at", Desc}, {"id", Asc}}, q.Orders())
	assert.Equal(t, 20, q.LimitValue())
	assert.Equal(t, 40, q.OffsetValue())
	assert.NoError(t, q.Validate())
}

func TestNilQuery(t *testing.T) {
	var q *Query
	assert.Nil(t, q.Predicates())
	assert.Nil(t, q.Orders())
	assert.Zero(t, q.LimitValue())
	assert.NoError(t, q.Validate())

	r, err := q.Resolve(func(s string) (string, error) { return s, nil })
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestInCopiesValues(t *testing.T) {
	vals := []any{1, 2}
	p := In("id", vals...)
	vals[0] = 100
	assert.Equal(t, []any{1, 2}, p.Values())
}

func TestValidate_ReportsAll(t *testing.T) {
	q := New().Where(Eq("", 1)).OrderBy("", Asc).Limit(-1).Offset(-2)
	err := q.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must not be negative")
	assert.Contains(t, err.Error(), "offset must not be negative")
	assert.Contains(t, err.Error(), "predicate = has no column")
	assert.Contains(t, err.Error(), "order term has no column")
}

func TestResolve(t *testing.T) {
	names := map[string]string{"Email": "email", "email": "email", "CreatedAt": "created_at"}
	resolve := func(s string) (string, error) {
		if c, ok := names[s]; ok {
			return c, nil
		}
		return "", fmt.Errorf("unknown column %q", s)
	}

	q := New().Where(Eq("Email", "a@b.c")).OrderBy("CreatedAt", Desc).Limit(5)
	r, err := q.Resolve(resolve)
	require.NoError(t, err)
	assert.Equal(t, "email", r.Predicates()[0].Column())
	assert.Equal(t, "created_at", r.Orders()[0].Column)
	assert.Equal(t, 5, r.LimitValue())
	assert.Equal(t, "Email", q.Predicates()[0].Column(), "original untouched")

	_, err = New().Where(Eq("Nope", 1)).Resolve(resolve)
	assert.Error(t, err)

	sentinel := errors.New("bad order")
	_, err = New().OrderBy("x", Asc).Resolve(func(string) (string, error) { return "", sentinel })
	assert.ErrorIs(t, err, sentinel)
}
