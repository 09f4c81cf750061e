package tx

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaporm/internal/testutil"
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialects/postgres"
	"github.com/leapstack-labs/leaporm/pkg/driver"
	"github.com/leapstack-labs/leaporm/pkg/pool"
	"github.com/leapstack-labs/leaporm/pkg/statement"
)

var (
	errLinkDown  = errors.New("link down")
	errDuplicate = errors.New("duplicate key")
)

func classify(op string, err error) error {
	switch {
	case errors.Is(err, errLinkDown):
		return &core.ConnectionError{Op: op, Err: err}
	case errors.Is(err, errDuplicate):
		return &core.ConflictError{Code: "23505", Err: err}
	default:
		return err
	}
}

type fixture struct {
	coord *Coordinator
	pool  *pool.Pool
	mock  sqlmock.Sqlmock
}

func newFixture(t *testing.T, logger *slog.Logger) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if logger == nil {
		logger = testutil.NewTestLogger(t)
	}
	p, err := pool.New(core.PoolConfig{Max: 1, AcquireTimeout: 50 * time.Millisecond},
		func(context.Context) (driver.Conn, error) { return db, nil },
		pool.WithLogger(logger), pool.WithName("test"))
	require.NoError(t, err)

	return &fixture{
		coord: NewCoordinator(p, postgres.Postgres, classify, logger),
		pool:  p,
		mock:  mock,
	}
}

var insertStmt = statement.Statement{SQL: `INSERT INTO "t" ("v") VALUES ($1)`, Args: []any{"x"}}

func TestScope_Commit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(insertStmt.SQL).WithArgs("x").WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	s := f.coord.NewScope()
	assert.Equal(t, NotStarted, s.State())
	require.NoError(t, s.Begin(ctx))
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 1, f.pool.Stats().Leased)

	res, err := s.Exec(ctx, insertStmt)
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, Committed, s.State())

	stats := f.pool.Stats()
	assert.Equal(t, 0, stats.Leased)
	assert.Equal(t, 1, stats.Idle)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestScope_UseAfterFinish(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	s := f.coord.NewScope()
	assert.ErrorIs(t, s.Commit(ctx), ErrNotStarted)
	assert.ErrorIs(t, s.Rollback(ctx), ErrNotStarted)
	_, err := s.Exec(ctx, insertStmt)
	assert.ErrorIs(t, err, ErrNotStarted)

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.Rollback(ctx))
	assert.Equal(t, RolledBack, s.State())

	assert.ErrorIs(t, s.Begin(ctx), core.ErrTxDone)
	assert.ErrorIs(t, s.Commit(ctx), core.ErrTxDone)
	_, err = s.Exec(ctx, insertStmt)
	assert.ErrorIs(t, err, core.ErrTxDone)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestScope_Query(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery(`SELECT "v" FROM "t"`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("a").AddRow("b"))
	f.mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	var got []string
	err := f.coord.Run(ctx, nil, func(s *Scope) error {
		return s.Query(ctx, statement.Statement{SQL: `SELECT "v" FROM "t"`}, func(rows *sql.Rows) error {
			for rows.Next() {
				var v string
				if err := rows.Scan(&v); err != nil {
					return err
				}
				got = append(got, v)
			}
			return rows.Err()
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRun_RollsBackOnError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(insertStmt.SQL).WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	var scope *Scope
	err := f.coord.Run(ctx, nil, func(s *Scope) error {
		scope = s
		if _, err := s.Exec(ctx, insertStmt); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RolledBack, scope.State())
	assert.Equal(t, 0, f.pool.Stats().Leased)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRun_RollsBackOnPanic(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = f.coord.Run(ctx, nil, func(*Scope) error { panic("kaboom") })
	})
	assert.Equal(t, 0, f.pool.Stats().Leased)
	assert.Equal(t, 1, f.pool.Stats().Idle)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRun_NestedSharesHandle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(insertStmt.SQL).WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec(insertStmt.SQL).WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	err := f.coord.Run(ctx, nil, func(outer *Scope) error {
		if _, err := outer.Exec(ctx, insertStmt); err != nil {
			return err
		}
		// Max is 1: a second acquire would time out.
		return f.coord.Run(ctx, outer, func(inner *Scope) error {
			assert.Same(t, outer, inner)
			assert.Equal(t, 1, inner.Depth())
			_, err := inner.Exec(ctx, insertStmt)
			return err
		})
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRun_NestedRollbackMarksRollbackOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inner := errors.New("inner failed")

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	err := f.coord.Run(ctx, nil, func(outer *Scope) error {
		nestedErr := f.coord.Run(ctx, outer, func(*Scope) error { return inner })
		assert.ErrorIs(t, nestedErr, inner)
		assert.Equal(t, Active, outer.State(), "nested rollback only decrements depth")
		return nil // swallow the nested failure
	})
	assert.ErrorIs(t, err, ErrRollbackOnly)
	assert.Equal(t, 0, f.pool.Stats().Leased)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestScope_ConnectionFailureDiscards(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(insertStmt.SQL).WillReturnError(errLinkDown)
	f.mock.ExpectClose()

	var scope *Scope
	err := f.coord.Run(ctx, nil, func(s *Scope) error {
		scope = s
		_, err := s.Exec(ctx, insertStmt)
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConnectionFailure)
	assert.ErrorIs(t, err, errLinkDown)
	assert.Equal(t, RolledBack, scope.State())

	stats := f.pool.Stats()
	assert.Equal(t, 0, stats.Open)
	assert.Equal(t, 0, stats.Leased)
	assert.Equal(t, int64(1), stats.Discarded)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestScope_ConflictRollsBack(t *testing.T) {
	logs := testutil.NewLogRecorder(t)
	f := newFixture(t, logs.Logger)
	ctx := context.Background()

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(insertStmt.SQL).WillReturnError(errDuplicate)
	f.mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	s := f.coord.NewScope()
	require.NoError(t, s.Begin(ctx))
	_, err := s.Exec(ctx, insertStmt)

	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "23505", conflict.Code)
	assert.ErrorIs(t, err, errDuplicate)
	assert.True(t, core.IsRetryable(err))

	assert.Equal(t, RolledBack, s.State())
	assert.Equal(t, 1, f.pool.Stats().Idle)
	events := logs.Events("transaction rolled back")
	require.Len(t, events, 1)
	assert.Equal(t, s.ID(), events[0]["scope"])
	assert.Equal(t, "conflict", events[0]["reason"])
	assert.Equal(t, "INFO", events[0][slog.LevelKey])
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestScope_OtherErrorsKeepScopeActive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	syntax := errors.New("syntax error")

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(insertStmt.SQL).WillReturnError(syntax)
	f.mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	s := f.coord.NewScope()
	require.NoError(t, s.Begin(ctx))
	_, err := s.Exec(ctx, insertStmt)
	assert.ErrorIs(t, err, syntax)
	assert.Equal(t, Active, s.State())
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestScope_CommitFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("COMMIT").WillReturnError(errDuplicate)
	f.mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	s := f.coord.NewScope()
	require.NoError(t, s.Begin(ctx))
	err := s.Commit(ctx)
	assert.ErrorIs(t, err, core.ErrTransactionConflict)
	assert.Equal(t, RolledBack, s.State())
	assert.Equal(t, 0, f.pool.Stats().Leased)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestScope_BeginFailureReleases(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	denied := errors.New("permission denied")

	f.mock.ExpectExec("BEGIN").WillReturnError(denied)

	s := f.coord.NewScope()
	err := s.Begin(ctx)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, NotStarted, s.State())
	assert.Equal(t, 1, f.pool.Stats().Idle)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBegin_PoolExhausted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	h, err := f.pool.Acquire(ctx)
	require.NoError(t, err)
	defer f.pool.Release(h)

	err = f.coord.NewScope().Begin(ctx)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
}

func TestRun_ForeignParent(t *testing.T) {
	a := newFixture(t, nil)
	b := newFixture(t, nil)
	err := a.coord.Run(context.Background(), b.coord.NewScope(), func(*Scope) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another coordinator")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "rolled_back", RolledBack.String())
	assert.True(t, Committed.Terminal())
	assert.False(t, Active.Terminal())
}
