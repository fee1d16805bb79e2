package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when the requested file or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIOFailure is returned when the backend cannot be read or written.
	ErrIOFailure = errors.New("I/O failure")

	// ErrParseFailure is returned when stored content cannot be interpreted.
	// For todo files this is reported per line and never aborts a load.
	ErrParseFailure = errors.New("parse failure")

	// ErrStateConflict is returned when the stored version differs from the
	// one the caller expected. Only the postgres backend detects it.
	ErrStateConflict = errors.New("state conflict")

	// ErrNotAuthenticated is returned when the backend has no credentials.
	ErrNotAuthenticated = errors.New("backend not authenticated")

	// ErrNotImplemented is returned when a backend does not support an operation.
	ErrNotImplemented = errors.New("method not implemented")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrTodoFileNotFound indicates that the todo file itself is missing.
	ErrTodoFileNotFound = fmt.Errorf("%w: todo file", ErrNotFound)

	// ErrCacheNotFound indicates that no sync cache has been written yet.
	ErrCacheNotFound = fmt.Errorf("%w: cache", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIOError checks if the error is an I/O failure.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIOFailure)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Path      string // The file path or object key
	Operation string // The operation that failed (e.g., "load", "save")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s of %s failed: %s: %v", e.Operation, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s of %s failed: %s", e.Operation, e.Path, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given path, operation, message, and wrapped error.
func NewStoreError(path, operation, message string, err error) *StoreError {
	return &StoreError{
		Path:      path,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
