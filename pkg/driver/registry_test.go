package driver

import (
	"log/slog"
	"testing"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownDriverError_Error(t *testing.T) {
	err := &UnknownDriverError{
		Dialect:   "oracle",
		Available: []string{"mysql", "postgresql"},
	}

	msg := err.Error()

	assert.NotEmpty(t, msg, "error message should not be empty")
	assert.Contains(t, msg, "oracle", "error should mention the unknown dialect")
	assert.Contains(t, msg, "leaporm.yaml", "error should mention config file")
}

func TestRegister(t *testing.T) {
	Register("test_driver_internal", func(_ *slog.Logger) Driver { return nil })

	assert.True(t, IsRegistered("test_driver_internal"), "test_driver_internal should be registered after Register()")

	factory, ok := Get("test_driver_internal")
	assert.True(t, ok)
	assert.NotNil(t, factory)
	assert.Contains(t, ListDrivers(), "test_driver_internal")
}

func TestNewDriver_EmptyDialect(t *testing.T) {
	_, err := NewDriver(core.DataSourceConfig{Name: "main"}, nil)
	require.Error(t, err, "NewDriver with empty dialect should fail")
	assert.Contains(t, err.Error(), "dialect not specified")
}

func TestNewDriver_Unknown(t *testing.T) {
	_, err := NewDriver(core.DataSourceConfig{Name: "main", Dialect: "oracle"}, nil)

	var unknown *UnknownDriverError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Dialect)
}
