package mapping

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Descriptor is the immutable mapping of one entity type to a table. It is
// shared read-only between goroutines.
type Descriptor struct {
	Table   string
	columns []Column

	pk       int
	byColumn map[string]int
	byField  map[string]int
}

func newDescriptor(table string, cols []Column) (*Descriptor, error) {
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("mapping: table name is required")
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("mapping %s: at least one field is required", table)
	}

	d := &Descriptor{
		Table:    table,
		columns:  cols,
		pk:       -1,
		byColumn: make(map[string]int, len(cols)),
		byField:  make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.Name == "" || c.Field == "" {
			return nil, fmt.Errorf("mapping %s: field %d needs both a field and a column name", table, i)
		}
		if _, dup := d.byColumn[c.Name]; dup {
			return nil, fmt.Errorf("mapping %s: duplicate column %q", table, c.Name)
		}
		if _, dup := d.byField[c.Field]; dup {
			return nil, fmt.Errorf("mapping %s: duplicate field %q", table, c.Field)
		}
		d.byColumn[c.Name] = i
		d.byField[c.Field] = i

		if c.PrimaryKey {
			if d.pk >= 0 {
				return nil, fmt.Errorf("mapping %s: more than one primary key (%s, %s)", table, cols[d.pk].Field, c.Field)
			}
			d.pk = i
		}
		if c.AutoIncrement && (!c.PrimaryKey || c.Type != Int) {
			return nil, fmt.Errorf("mapping %s: auto-increment field %s must be an integer primary key", table, c.Field)
		}
	}
	if d.pk < 0 {
		return nil, fmt.Errorf("mapping %s: exactly one primary key is required", table)
	}
	return d, nil
}

// PrimaryKey returns the primary key column.
func (d *Descriptor) PrimaryKey() Column {
	return d.columns[d.pk]
}

// Columns returns a copy of the columns in declaration order.
func (d *Descriptor) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// ColumnNames returns the column names in declaration order.
func (d *Descriptor) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Lookup resolves a column by column name or Go field name.
func (d *Descriptor) Lookup(name string) (Column, bool) {
	i, ok := d.index(name)
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

func (d *Descriptor) index(name string) (int, bool) {
	if i, ok := d.byColumn[name]; ok {
		return i, true
	}
	i, ok := d.byField[name]
	return i, ok
}

// Describer is implemented by every registered entity.
type Describer interface {
	Descriptor() *Descriptor
}

// ErrRegistrySealed is returned when adding to a sealed Registry.
var ErrRegistrySealed = errors.New("mapping: registry is sealed")

// Registry is the ordered set of descriptors known to an application. It is
// filled from a single goroutine at startup and read-only after Seal; reads
// take no locks.
type Registry struct {
	sealed  atomic.Bool
	entries []*Descriptor
	byTable map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTable: make(map[string]*Descriptor)}
}

// Add registers the descriptors of the given entities.
func (r *Registry) Add(entities ...Describer) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	for _, e := range entities {
		d := e.Descriptor()
		if _, dup := r.byTable[d.Table]; dup {
			return fmt.Errorf("mapping: table %q registered twice", d.Table)
		}
		r.byTable[d.Table] = d
		r.entries = append(r.entries, d)
	}
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() { r.sealed.Store(true) }

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	return append([]*Descriptor(nil), r.entries...)
}

// Lookup returns the descriptor for a table.
func (r *Registry) Lookup(table string) (*Descriptor, bool) {
	d, ok := r.byTable[table]
	return d, ok
}
