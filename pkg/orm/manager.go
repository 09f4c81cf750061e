package orm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/pool"
)

// Manager owns one DB per configured data source. It is created at startup
// and passed to the code that needs it.
type Manager struct {
	dbs map[string]*DB
}

// OpenAll opens every data source concurrently. If any fails, the ones
// already opened are closed and the errors are returned joined.
func OpenAll(ctx context.Context, sources map[string]core.DataSourceConfig, opts ...Option) (*Manager, error) {
	var (
		mu   sync.Mutex
		dbs  = make(map[string]*DB, len(sources))
		errs []error
	)

	var g errgroup.Group
	for name, cfg := range sources {
		if cfg.Name == "" {
			cfg.Name = name
		}
		g.Go(func() error {
			db, err := Open(ctx, cfg, opts...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("datasource %s: %w", name, err))
				return nil
			}
			dbs[name] = db
			return nil
		})
	}
	_ = g.Wait()

	m := &Manager{dbs: dbs}
	if len(errs) > 0 {
		closeErr := m.Close(context.WithoutCancel(ctx))
		return nil, errors.Join(append(errs, closeErr)...)
	}
	return m, nil
}

// Get returns the named data source.
func (m *Manager) Get(name string) (*DB, error) {
	db, ok := m.dbs[name]
	if !ok {
		return nil, fmt.Errorf("unknown datasource %q (available: %v)", name, m.Names())
	}
	return db, nil
}

// Names returns the data source names in sorted order.
func (m *Manager) Names() []string {
	return slices.Sorted(maps.Keys(m.dbs))
}

// Collector returns a Prometheus collector over every pool.
func (m *Manager) Collector() *pool.Collector {
	pools := make([]*pool.Pool, 0, len(m.dbs))
	for _, name := range m.Names() {
		pools = append(pools, m.dbs[name].Pool())
	}
	return pool.NewCollector(pools...)
}

// Close closes every data source concurrently.
func (m *Manager) Close(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for name, db := range m.dbs {
		g.Go(func() error {
			if err := db.Close(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
