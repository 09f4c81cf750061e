// Package tx coordinates transaction scopes over pooled connections.
//
// A Scope pins one pool handle from Begin until its outermost Commit or
// Rollback. Statements run on the pinned handle through Exec and Query, which
// are serialized per scope. Every exit path returns the handle to the pool or
// discards it:
//
//	err := coord.Run(ctx, nil, func(s *tx.Scope) error {
//		_, err := s.Exec(ctx, stmt)
//		return err
//	})
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/pool"
	"github.com/leapstack-labs/leaporm/pkg/statement"
)

// State is the lifecycle state of a Scope.
type State int

const (
	NotStarted State = iota
	Active
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the scope can no longer be used.
func (s State) Terminal() bool { return s == Committed || s == RolledBack }

var (
	// ErrNotStarted is returned when Commit, Rollback or a statement is issued before Begin.
	ErrNotStarted = errors.New("transaction not started")

	// ErrRollbackOnly is returned by the outermost Commit after a nested scope rolled back.
	// The transaction has been rolled back.
	ErrRollbackOnly = errors.New("transaction rolled back: a nested scope requested rollback")
)

// Scope is one unit of work. It is safe for concurrent use, but statements
// on a scope run one at a time.
type Scope struct {
	id    string
	coord *Coordinator

	mu           sync.Mutex
	state        State
	depth        int
	rollbackOnly bool
	handle       *pool.Handle
}

// ID returns the scope id used in log events.
func (s *Scope) ID() string { return s.id }

// State returns the current state.
func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Depth returns the nesting depth; zero for the outermost level.
func (s *Scope) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

// Begin acquires a handle and opens the transaction. On an Active scope it
// only increases the nesting depth and shares the handle.
func (s *Scope) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Active:
		s.depth++
		return nil
	case Committed, RolledBack:
		return core.ErrTxDone
	}

	h, err := s.coord.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if _, err := h.Conn().ExecContext(ctx, s.coord.dialect.BeginStatement()); err != nil {
		err = s.coord.classify("begin", err)
		if disposable(err) {
			s.coord.pool.Discard(h)
		} else {
			s.coord.pool.Release(h)
		}
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.handle = h
	s.state = Active
	s.coord.logger.Debug("transaction started", slog.String("scope", s.id), slog.Uint64("handle", h.ID()))
	return nil
}

// Commit commits the transaction at depth zero and returns the handle.
// At a nested level it only decreases the depth.
func (s *Scope) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if s.depth > 0 {
		s.depth--
		return nil
	}

	if s.rollbackOnly {
		if err := s.rollbackLocked(ctx, "nested rollback"); err != nil {
			return errors.Join(ErrRollbackOnly, err)
		}
		return ErrRollbackOnly
	}

	if _, err := s.handle.Conn().ExecContext(ctx, s.coord.dialect.CommitStatement()); err != nil {
		err = s.coord.classify("commit", err)
		if !disposable(err) {
			// A failed COMMIT leaves the transaction open on some drivers.
			_, _ = s.handle.Conn().ExecContext(context.WithoutCancel(ctx), s.coord.dialect.RollbackStatement())
		}
		s.finish(RolledBack, disposable(err), "commit failed", err)
		return fmt.Errorf("commit: %w", err)
	}

	s.finish(Committed, false, "", nil)
	return nil
}

// Rollback rolls the transaction back at depth zero and returns the handle.
// At a nested level it decreases the depth and marks the scope rollback-only.
func (s *Scope) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if s.depth > 0 {
		s.depth--
		s.rollbackOnly = true
		return nil
	}
	return s.rollbackLocked(ctx, "requested")
}

// Exec runs a statement on the pinned handle.
func (s *Scope) Exec(ctx context.Context, stmt statement.Statement) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return nil, err
	}
	res, err := s.handle.Conn().ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, s.fail(ctx, "exec", err)
	}
	return res, nil
}

// Query runs a statement on the pinned handle and passes the rows to fn.
// Rows are closed when fn returns.
func (s *Scope) Query(ctx context.Context, stmt statement.Statement, fn func(*sql.Rows) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	rows, err := s.handle.Conn().QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return s.fail(ctx, "query", err)
	}
	err = fn(rows)
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return s.fail(ctx, "query", err)
	}
	return nil
}

func (s *Scope) checkActive() error {
	switch s.state {
	case NotStarted:
		return ErrNotStarted
	case Committed, RolledBack:
		return core.ErrTxDone
	}
	return nil
}

// fail classifies a statement error. Connection failures discard the handle
// and conflicts roll the scope back; both end the scope before the error is
// returned. Other errors leave the scope Active.
func (s *Scope) fail(ctx context.Context, op string, err error) error {
	err = s.coord.classify(op, err)
	switch {
	case disposable(err):
		s.finish(RolledBack, true, op+" failed", err)
	case errors.Is(err, core.ErrTransactionConflict):
		if rbErr := s.rollbackLocked(ctx, "conflict"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
	}
	return err
}

// rollbackLocked issues ROLLBACK and ends the scope. Must hold s.mu.
func (s *Scope) rollbackLocked(ctx context.Context, reason string) error {
	_, err := s.handle.Conn().ExecContext(context.WithoutCancel(ctx), s.coord.dialect.RollbackStatement())
	if err != nil {
		err = s.coord.classify("rollback", err)
		s.finish(RolledBack, true, reason, err)
		return fmt.Errorf("rollback: %w", err)
	}
	s.finish(RolledBack, false, reason, nil)
	return nil
}

// finish moves the scope to a terminal state and gives the handle back.
// Must hold s.mu.
func (s *Scope) finish(state State, discard bool, reason string, cause error) {
	h := s.handle
	s.handle = nil
	s.state = state
	s.depth = 0

	if state == RolledBack {
		attrs := []any{
			slog.String("scope", s.id),
			slog.String("reason", reason),
			slog.Uint64("handle", h.ID()),
			slog.Bool("discarded", discard),
		}
		if cause != nil {
			attrs = append(attrs, slog.String("error", cause.Error()))
			s.coord.logger.Warn("transaction rolled back", attrs...)
		} else {
			s.coord.logger.Info("transaction rolled back", attrs...)
		}
	}

	if discard {
		s.coord.pool.Discard(h)
	} else {
		s.coord.pool.Release(h)
	}
}

// disposable reports whether the connection behind a failed statement must
// not be reused.
func disposable(err error) bool {
	return errors.Is(err, core.ErrConnectionFailure) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
