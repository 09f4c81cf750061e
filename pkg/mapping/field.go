package mapping

import (
	"fmt"
)

// Column describes one mapped column.
type Column struct {
	Field         string // Go field name
	Name          string // column name
	Type          Type
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	Length        int // max length for String and Bytes, 0 = unbounded
}

// FieldDef binds one column to a field of T. It is built with Field or Pointer.
type FieldDef[T any] interface {
	column() Column
	// get returns the canonical value of the field, nil for SQL NULL.
	get(entity *T) (any, error)
	// set coerces a driver value into the field; nil means SQL NULL.
	set(entity *T, raw any) error
	zero(entity *T) bool
	checks() []func(any) error
	required() bool
}

// Option configures a field.
type Option func(*fieldOptions)

type fieldOptions struct {
	primaryKey    bool
	autoIncrement bool
	unique        bool
	required      bool
	length        int
	checks        []func(any) error
}

// PrimaryKey marks the field as the primary key.
func PrimaryKey() Option { return func(o *fieldOptions) { o.primaryKey = true } }

// AutoIncrement marks an integer primary key as generated by the database.
func AutoIncrement() Option { return func(o *fieldOptions) { o.autoIncrement = true } }

// Unique adds a UNIQUE constraint to the column.
func Unique() Option { return func(o *fieldOptions) { o.unique = true } }

// Length bounds string and byte columns to n characters or bytes.
func Length(n int) Option { return func(o *fieldOptions) { o.length = n } }

// Required makes a Pointer field non-nullable and a Field reject its zero value.
func Required() Option { return func(o *fieldOptions) { o.required = true } }

// Check adds a custom validation run on the canonical value of a non-null field.
func Check(fn func(any) error) Option {
	return func(o *fieldOptions) {
		if fn != nil {
			o.checks = append(o.checks, fn)
		}
	}
}

func buildOptions(opts []Option) fieldOptions {
	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// valueField is backed by a value of type V and is never NULL.
type valueField[T any, V Scalar] struct {
	col  Column
	ref  func(*T) *V
	opts fieldOptions
}

// Field maps a value-backed field. ref returns the address of the field:
//
//	mapping.Field("Email", "email", func(u *User) *string { return &u.Email }, mapping.Unique())
func Field[T any, V Scalar](field, column string, ref func(*T) *V, opts ...Option) FieldDef[T] {
	o := buildOptions(opts)
	return &valueField[T, V]{
		col: Column{
			Field:         field,
			Name:          column,
			Type:          semanticType[V](),
			PrimaryKey:    o.primaryKey,
			AutoIncrement: o.autoIncrement,
			Unique:        o.unique,
			Length:        o.length,
		},
		ref:  ref,
		opts: o,
	}
}

func (f *valueField[T, V]) column() Column            { return f.col }
func (f *valueField[T, V]) checks() []func(any) error { return f.opts.checks }
func (f *valueField[T, V]) required() bool            { return f.opts.required }

func (f *valueField[T, V]) get(entity *T) (any, error) {
	return canonical(*f.ref(entity))
}

func (f *valueField[T, V]) set(entity *T, raw any) error {
	if raw == nil {
		return errNull
	}
	var v V
	if err := assign(&v, raw); err != nil {
		return err
	}
	*f.ref(entity) = v
	return nil
}

func (f *valueField[T, V]) zero(entity *T) bool {
	return isZero(*f.ref(entity))
}

// pointerField is backed by a *V; nil maps to NULL.
type pointerField[T any, V Scalar] struct {
	col  Column
	ref  func(*T) **V
	opts fieldOptions
}

// Pointer maps a pointer-backed field. It is nullable unless Required is given:
//
//	mapping.Pointer("Nickname", "nickname", func(u *User) **string { return &u.Nickname })
func Pointer[T any, V Scalar](field, column string, ref func(*T) **V, opts ...Option) FieldDef[T] {
	o := buildOptions(opts)
	return &pointerField[T, V]{
		col: Column{
			Field:         field,
			Name:          column,
			Type:          semanticType[V](),
			Nullable:      !o.required && !o.primaryKey,
			PrimaryKey:    o.primaryKey,
			AutoIncrement: o.autoIncrement,
			Unique:        o.unique,
			Length:        o.length,
		},
		ref:  ref,
		opts: o,
	}
}

func (f *pointerField[T, V]) column() Column            { return f.col }
func (f *pointerField[T, V]) checks() []func(any) error { return f.opts.checks }
func (f *pointerField[T, V]) required() bool            { return false }

func (f *pointerField[T, V]) get(entity *T) (any, error) {
	p := *f.ref(entity)
	if p == nil {
		return nil, nil
	}
	return canonical(*p)
}

func (f *pointerField[T, V]) set(entity *T, raw any) error {
	if raw == nil {
		if !f.col.Nullable {
			return errNull
		}
		*f.ref(entity) = nil
		return nil
	}
	v := new(V)
	if err := assign(v, raw); err != nil {
		return err
	}
	*f.ref(entity) = v
	return nil
}

func (f *pointerField[T, V]) zero(entity *T) bool {
	p := *f.ref(entity)
	return p == nil || isZero(*p)
}

// String implements fmt.Stringer for debugging.
func (c Column) String() string {
	null := "NOT NULL"
	if c.Nullable {
		null = "NULL"
	}
	return fmt.Sprintf("%s(%s %s %s)", c.Field, c.Name, c.Type, null)
}
