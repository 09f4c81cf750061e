package tx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
	"github.com/leapstack-labs/leaporm/pkg/pool"
)

// ClassifyFunc maps a driver error onto the core error taxonomy.
type ClassifyFunc func(op string, err error) error

// Coordinator creates scopes over one pool.
type Coordinator struct {
	pool     *pool.Pool
	dialect  *dialect.Dialect
	classify ClassifyFunc
	logger   *slog.Logger
}

// NewCoordinator returns a coordinator issuing the transaction statements of d.
// A nil classify leaves driver errors unchanged; a nil logger discards events.
func NewCoordinator(p *pool.Pool, d *dialect.Dialect, classify ClassifyFunc, logger *slog.Logger) *Coordinator {
	if classify == nil {
		classify = func(_ string, err error) error { return err }
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		pool:     p,
		dialect:  d,
		classify: classify,
		logger:   logger.With(slog.String("component", "tx")),
	}
}

// Dialect returns the dialect statements are built for.
func (c *Coordinator) Dialect() *dialect.Dialect { return c.dialect }

// Pool returns the pool scopes lease from.
func (c *Coordinator) Pool() *pool.Pool { return c.pool }

// NewScope returns a scope in state NotStarted.
func (c *Coordinator) NewScope() *Scope {
	return &Scope{id: uuid.NewString(), coord: c}
}

// Run executes fn inside a scope. With a nil parent a new scope is begun,
// committed when fn returns nil and rolled back when fn fails or panics; the
// panic is re-raised after the rollback. With a parent, fn runs nested in it
// and only the parent's outermost Commit or Rollback takes effect.
func (c *Coordinator) Run(ctx context.Context, parent *Scope, fn func(s *Scope) error) (err error) {
	s := parent
	if s == nil {
		s = c.NewScope()
	} else if s.coord != c {
		return errors.New("tx: parent scope belongs to another coordinator")
	}

	if err := s.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := s.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, core.ErrTxDone) {
				c.logger.Error("rollback after panic failed", slog.String("scope", s.id), slog.String("error", rbErr.Error()))
			}
			panic(r)
		}
	}()

	if err := fn(s); err != nil {
		rbErr := s.Rollback(context.WithoutCancel(ctx))
		if rbErr != nil && !errors.Is(rbErr, core.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("tx: %w", rbErr))
		}
		return err
	}
	return s.Commit(ctx)
}
