package domain

import "fmt"

// Error kinds surfaced to the presentation layer. Validation and conflict
// errors are raised synchronously; storage and sync errors are caught at
// the boundary and reported without crashing the session.

// ValidationError signals missing or malformed input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError signals that a username is already registered.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func NewConflictError(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// AuthError signals bad credentials. The message is deliberately the same
// for unknown users and wrong passwords to avoid account enumeration.
type AuthError struct{}

func (e *AuthError) Error() string { return "invalid username or password" }

// ErrInvalidCredentials is the only AuthError ever returned.
var ErrInvalidCredentials = &AuthError{}

// StorageError wraps a local persistence failure. The in-memory mutation
// it followed is NOT rolled back; only the persisted copy is stale.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// SyncError wraps a remote document store failure.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("sync %s: %v", e.Op, e.Err) }
func (e *SyncError) Unwrap() error { return e.Err }
