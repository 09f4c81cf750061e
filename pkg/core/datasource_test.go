package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig_WithDefaults(t *testing.T) {
	got := PoolConfig{}.WithDefaults()
	assert.Equal(t, PoolConfig{
		Max:              DefaultPoolMax,
		AcquireTimeout:   DefaultAcquireTimeout,
		IdleTimeout:      DefaultIdleTimeout,
		HealthCheckAfter: DefaultHealthCheckAfter,
	}, got)

	set := PoolConfig{Min: 1, Max: 3, AcquireTimeout: time.Second, IdleTimeout: time.Minute, HealthCheckAfter: time.Hour}
	assert.Equal(t, set, set.WithDefaults(), "explicit values are kept")
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PoolConfig
		wantErr string
	}{
		{"valid", PoolConfig{Min: 1, Max: 2}, ""},
		{"zero max", PoolConfig{}, "pool max must be positive"},
		{"negative min", PoolConfig{Min: -1, Max: 2}, "must not be negative"},
		{"min above max", PoolConfig{Min: 3, Max: 2}, "pool min (3) exceeds max (2)"},
		{"negative timeout", PoolConfig{Max: 1, AcquireTimeout: -time.Second}, "timeouts must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDataSourceConfig_String(t *testing.T) {
	pg := DataSourceConfig{
		Name: "main", Dialect: "postgres", Host: "db", Port: 5432,
		Database: "app", Username: "svc", Password: "secret",
	}
	assert.Equal(t, "main(postgresql://svc@db:5432/app)", pg.String())
	assert.NotContains(t, pg.String(), "secret")

	lite := DataSourceConfig{Name: "local", Dialect: "sqlite3", Path: "/tmp/x.db"}
	assert.Equal(t, "local(sqlite:/tmp/x.db)", lite.String())
}

func TestDataSourceConfig_Option(t *testing.T) {
	cfg := DataSourceConfig{Options: map[string]string{"sslmode": "require", "empty": ""}}
	assert.Equal(t, "require", cfg.Option("sslmode", "disable"))
	assert.Equal(t, "disable", cfg.Option("empty", "disable"))
	assert.Equal(t, "x", cfg.Option("missing", "x"))
	assert.Equal(t, "x", DataSourceConfig{}.Option("missing", "x"))
}

func TestCanonicalDialect(t *testing.T) {
	for in, want := range map[string]string{
		"postgres":   DialectPostgreSQL,
		"pg":         DialectPostgreSQL,
		"postgresql": DialectPostgreSQL,
		"sqlite3":    DialectSQLite,
		"mariadb":    DialectMySQL,
		"mysql":      DialectMySQL,
		"oracle":     "oracle",
	} {
		assert.Equal(t, want, CanonicalDialect(in), in)
	}
}
