package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(core.DataSourceConfig{
		Host:     "db.internal",
		Port:     3307,
		Database: "shop",
		Username: "root",
		Password: "pass",
		Options:  map[string]string{"charset": "utf8mb4", "connect_timeout": "3s", "tls": "skip-verify"},
	})
	require.NoError(t, err)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)

	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "pass", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, 3*time.Second, parsed.Timeout)
	assert.Equal(t, "skip-verify", parsed.TLSConfig)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}

func TestBuildMySQLDSN_Defaults(t *testing.T) {
	dsn, err := buildMySQLDSN(core.DataSourceConfig{Database: "app"})
	require.NoError(t, err)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3306", parsed.Addr)
}

func TestBuildMySQLDSN_InvalidTimeout(t *testing.T) {
	_, err := buildMySQLDSN(core.DataSourceConfig{Options: map[string]string{"connect_timeout": "soon"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect_timeout")
}

func TestClassify(t *testing.T) {
	d := New(nil)

	tests := []struct {
		name       string
		err        error
		conflict   bool
		connection bool
	}{
		{name: "duplicate entry", err: &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, conflict: true},
		{name: "deadlock", err: &mysqldriver.MySQLError{Number: 1213}, conflict: true},
		{name: "lock wait timeout", err: &mysqldriver.MySQLError{Number: 1205}, conflict: true},
		{name: "foreign key parent", err: &mysqldriver.MySQLError{Number: 1451}, conflict: true},
		{name: "foreign key child", err: &mysqldriver.MySQLError{Number: 1452}, conflict: true},
		{name: "syntax error", err: &mysqldriver.MySQLError{Number: 1064}},
		{name: "invalid connection", err: mysqldriver.ErrInvalidConn, connection: true},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Classify("exec", tt.err)
			assert.Equal(t, tt.conflict, errors.Is(got, core.ErrTransactionConflict))
			assert.Equal(t, tt.connection, errors.Is(got, core.ErrConnectionFailure))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestNew(t *testing.T) {
	drv := New(nil)
	assert.False(t, drv.IsConnected())
	assert.Equal(t, "mysql", drv.DialectName())
	assert.Equal(t, "mysql", drv.Dialect().Name)

	var _ driver.Driver = (*Driver)(nil)

	_, err := drv.Open(context.Background())
	assert.ErrorIs(t, err, driver.ErrNotConnected)
}

func TestDriver_Registry(t *testing.T) {
	assert.True(t, driver.IsRegistered("mysql"))
	assert.True(t, driver.IsRegistered("mariadb"))
}
