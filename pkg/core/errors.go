package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	// ErrPoolExhausted is returned when no handle became idle within the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrPoolClosed is returned by Acquire after Shutdown started.
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrConnectionFailure marks driver-level I/O errors. The handle involved is discarded.
	ErrConnectionFailure = errors.New("connection failure")

	// ErrValidation is returned when an entity fails its field constraints.
	ErrValidation = errors.New("validation failed")

	// ErrMapping is returned when a row cannot hydrate the target type.
	ErrMapping = errors.New("mapping failed")

	// ErrTransactionConflict marks driver-reported conflicts such as constraint
	// violations, deadlocks or serialization failures.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound is returned when a lookup by primary key finds no row.
	ErrNotFound = errors.New("record not found")

	// ErrTxDone is returned when a finished scope is used again.
	ErrTxDone = errors.New("transaction already finished")
)

// PoolExhaustedError reports a timed-out acquire.
type PoolExhaustedError struct {
	Pool    string
	Timeout time.Duration
	Max     int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool %q exhausted: no connection available within %s (max %d)", e.Pool, e.Timeout, e.Max)
}

// Is matches ErrPoolExhausted.
func (e *PoolExhaustedError) Is(target error) bool { return target == ErrPoolExhausted }

// ConnectionError wraps a driver I/O failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failure during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is matches ErrConnectionFailure.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailure }

// FieldError is one violated field constraint.
type FieldError struct {
	Field  string
	Column string
	Reason string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Reason
}

// ValidationError lists every violated field of one entity.
type ValidationError struct {
	Table  string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Table, strings.Join(parts, "; "))
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Has reports whether the named field (or column) is among the violations.
func (e *ValidationError) Has(name string) bool {
	for _, f := range e.Fields {
		if f.Field == name || f.Column == name {
			return true
		}
	}
	return false
}

// MappingError reports a row that could not hydrate an entity.
type MappingError struct {
	Table  string
	Column string
	Err    error
}

func (e *MappingError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("mapping %s failed: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("mapping %s.%s failed: %v", e.Table, e.Column, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// Is matches ErrMapping.
func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// ConflictError carries a driver conflict verbatim.
type ConflictError struct {
	// Code is the driver's error code (SQLSTATE, MySQL error number, SQLite code)
	Code string
	Err  error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction conflict [%s]: %v", e.Code, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// Is matches ErrTransactionConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrTransactionConflict }

// IsRetryable reports whether the caller may retry the operation unchanged.
// Exhaustion and conflicts are transient; validation and mapping failures are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrTransactionConflict)
}
