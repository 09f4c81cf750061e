package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("driver said no")
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"exhausted", &PoolExhaustedError{Pool: "main", Timeout: time.Second, Max: 2}, ErrPoolExhausted},
		{"connection", &ConnectionError{Op: "ping", Err: cause}, ErrConnectionFailure},
		{"validation", &ValidationError{Table: "users", Fields: []FieldError{{Field: "Email", Reason: "is required"}}}, ErrValidation},
		{"mapping", &MappingError{Table: "users", Column: "age", Err: cause}, ErrMapping},
		{"conflict", &ConflictError{Code: "23505", Err: cause}, ErrTransactionConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("save user: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			for _, other := range []error{ErrPoolExhausted, ErrConnectionFailure, ErrValidation, ErrMapping, ErrTransactionConflict, ErrNotFound} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other)
				}
			}
		})
	}
}

func TestErrorsUnwrapCause(t *testing.T) {
	cause := errors.New("broken pipe")
	assert.ErrorIs(t, &ConnectionError{Op: "exec", Err: cause}, cause)
	assert.ErrorIs(t, &MappingError{Table: "t", Err: cause}, cause)
	assert.ErrorIs(t, &ConflictError{Code: "40001", Err: cause}, cause)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		`connection pool "main" exhausted: no connection available within 50ms (max 2)`,
		(&PoolExhaustedError{Pool: "main", Timeout: 50 * time.Millisecond, Max: 2}).Error())
	assert.Equal(t,
		"validation failed for users: Email: is required; Name: length 300 exceeds maximum 200",
		(&ValidationError{Table: "users", Fields: []FieldError{
			{Field: "Email", Column: "email", Reason: "is required"},
			{Field: "Name", Column: "name", Reason: "length 300 exceeds maximum 200"},
		}}).Error())
	assert.Equal(t, "mapping users failed: boom", (&MappingError{Table: "users", Err: errors.New("boom")}).Error())
	assert.Equal(t, "mapping users.age failed: boom", (&MappingError{Table: "users", Column: "age", Err: errors.New("boom")}).Error())
	assert.Equal(t, "transaction conflict [1062]: dup", (&ConflictError{Code: "1062", Err: errors.New("dup")}).Error())
}

func TestValidationError_Has(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{{Field: "Email", Column: "email"}}}
	assert.True(t, err.Has("Email"))
	assert.True(t, err.Has("email"))
	assert.False(t, err.Has("Name"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("acquire: %w", &PoolExhaustedError{})))
	assert.True(t, IsRetryable(&ConflictError{Code: "40P01"}))
	assert.False(t, IsRetryable(&ValidationError{}))
	assert.False(t, IsRetryable(&MappingError{}))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(nil))
}
