// Package orm wires a data source's driver, pool and transaction coordinator
// into one handle.
//
// Drivers register themselves on import:
//
//	import _ "github.com/leapstack-labs/leaporm/pkg/drivers/postgres"
//
//	db, err := orm.Open(ctx, cfg, orm.WithLogger(logger))
//	defer db.Close(ctx)
package orm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/driver"
	"github.com/leapstack-labs/leaporm/pkg/pool"
	"github.com/leapstack-labs/leaporm/pkg/tx"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	grace  time.Duration
	clock  func() time.Time
}

// WithLogger sets the logger shared by the driver, pool and coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithShutdownGrace bounds how long Close waits for leased connections.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithClock replaces time.Now in the pool.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		grace:  core.DefaultShutdownGrace,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DB is an open data source.
type DB struct {
	cfg    core.DataSourceConfig
	driver driver.Driver
	pool   *pool.Pool
	coord  *tx.Coordinator
	logger *slog.Logger
	grace  time.Duration
}

// Open resolves the driver for cfg.Dialect, verifies the database is
// reachable, builds the pool and opens its Min connections.
func Open(ctx context.Context, cfg core.DataSourceConfig, opts ...Option) (*DB, error) {
	o := buildOptions(opts)
	logger := o.logger.With(slog.String("datasource", cfg.Name))

	// A shared in-memory SQLite database lives only while a connection is open.
	if core.CanonicalDialect(cfg.Dialect) == core.DialectSQLite && cfg.Path == ":memory:" && cfg.Pool.Min == 0 {
		cfg.Pool.Min = 1
	}

	drv, err := driver.NewDriver(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := drv.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}

	poolOpts := []pool.Option{pool.WithLogger(logger), pool.WithName(cfg.Name)}
	if o.clock != nil {
		poolOpts = append(poolOpts, pool.WithClock(o.clock))
	}
	p, err := pool.New(cfg.Pool, drv.Open, poolOpts...)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}

	db := &DB{
		cfg:    cfg,
		driver: drv,
		pool:   p,
		coord:  tx.NewCoordinator(p, drv.Dialect(), drv.Classify, logger),
		logger: logger,
		grace:  o.grace,
	}

	if err := p.Warm(ctx); err != nil {
		_ = db.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("warm pool %s: %w", cfg.Name, err)
	}

	logger.Info("data source opened",
		slog.String("dsn", cfg.String()),
		slog.Int("pool_min", p.Config().Min),
		slog.Int("pool_max", p.Config().Max))
	return db, nil
}

// Name returns the data source name.
func (db *DB) Name() string { return db.cfg.Name }

// Config returns the data source configuration.
func (db *DB) Config() core.DataSourceConfig { return db.cfg }

// Dialect returns the SQL dialect of the data source.
func (db *DB) Dialect() *dialect.Dialect { return db.driver.Dialect() }

// Coordinator returns the transaction coordinator.
func (db *DB) Coordinator() *tx.Coordinator { return db.coord }

// Pool returns the connection pool.
func (db *DB) Pool() *pool.Pool { return db.pool }

// Logger returns the data source logger.
func (db *DB) Logger() *slog.Logger { return db.logger }

// Stats returns a snapshot of the pool counters.
func (db *DB) Stats() pool.Stats { return db.pool.Stats() }

// Run executes fn in a new transaction scope.
func (db *DB) Run(ctx context.Context, fn func(s *tx.Scope) error) error {
	return db.coord.Run(ctx, nil, fn)
}

// Ping leases a handle and checks the connection, returning the round-trip time.
func (db *DB) Ping(ctx context.Context) (time.Duration, error) {
	h, err := db.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	if err := h.Conn().PingContext(ctx); err != nil {
		err = db.driver.Classify("ping", err)
		if errors.Is(err, core.ErrConnectionFailure) {
			db.pool.Discard(h)
		} else {
			db.pool.Release(h)
		}
		return 0, err
	}
	elapsed := time.Since(start)
	db.pool.Release(h)
	return elapsed, nil
}

// Close shuts the pool down, waiting up to the shutdown grace for leased
// handles, then releases the driver.
func (db *DB) Close(ctx context.Context) error {
	poolErr := db.pool.Shutdown(ctx, db.grace)
	drvErr := db.driver.Close()
	db.logger.Info("data source closed")
	return errors.Join(poolErr, drvErr)
}
