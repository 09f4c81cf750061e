package driver

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLDriver_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLDriver{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			assert.NoError(t, base.Close())
		})
	}
}

func TestBaseSQLDriver_Attach(t *testing.T) {
	tests := []struct {
		name      string
		pingErr   error
		expectErr bool
	}{
		{name: "ping succeeds", pingErr: nil, expectErr: false},
		{name: "ping fails", pingErr: sqldriver.ErrBadConn, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			mock.ExpectPing().WillReturnError(tt.pingErr)
			if tt.expectErr {
				mock.ExpectClose()
			}

			base := &BaseSQLDriver{}
			err = base.Attach(context.Background(), db, core.DataSourceConfig{Name: "main"})
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrConnectionFailure)
				assert.False(t, base.IsConnected())
			} else {
				require.NoError(t, err)
				assert.True(t, base.IsConnected())
				assert.Equal(t, "main", base.Cfg.Name)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLDriver_Open(t *testing.T) {
	t.Run("open without connection", func(t *testing.T) {
		base := &BaseSQLDriver{}
		_, err := base.Open(context.Background())
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("open returns a usable connection", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))

		base := &BaseSQLDriver{DB: db}
		conn, err := base.Open(context.Background())
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		res, err := conn.ExecContext(context.Background(), "UPDATE users SET name = ?", "ada")
		require.NoError(t, err)
		affected, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClassifyCommon(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		isConnection bool
		unchanged    bool
	}{
		{name: "nil", err: nil, unchanged: true},
		{name: "bad conn", err: sqldriver.ErrBadConn, isConnection: true},
		{name: "conn done", err: sql.ErrConnDone, isConnection: true},
		{name: "eof", err: io.EOF, isConnection: true},
		{name: "wrapped unexpected eof", err: fmt.Errorf("read: %w", io.ErrUnexpectedEOF), isConnection: true},
		{name: "net op error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, isConnection: true},
		{name: "context canceled", err: context.Canceled, unchanged: true},
		{name: "syntax error", err: errors.New("syntax error near FROM"), unchanged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyCommon("exec", tt.err)
			if tt.unchanged {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.Equal(t, tt.isConnection, errors.Is(got, core.ErrConnectionFailure))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyCommon_KeepsExistingConnectionError(t *testing.T) {
	orig := &core.ConnectionError{Op: "open", Err: io.EOF}
	got := ClassifyCommon("exec", orig)
	assert.Same(t, orig, got)
}
