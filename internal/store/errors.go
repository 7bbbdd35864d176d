package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeInitialization indicates schema creation or migration failed.
	// Fatal at startup; never retried.
	CodeInitialization ErrorCode = "INITIALIZATION"

	// CodeTransaction indicates a multi-row write failed and was rolled back.
	// No partial state is visible after this error.
	CodeTransaction ErrorCode = "TRANSACTION"

	// CodeSerialization indicates a payload could not be encoded or decoded.
	CodeSerialization ErrorCode = "SERIALIZATION"

	// CodeLookupInconsistency indicates a row that must exist was absent.
	CodeLookupInconsistency ErrorCode = "LOOKUP_INCONSISTENCY"

	// CodeIO indicates the database engine failed a read or write.
	CodeIO ErrorCode = "IO"

	// CodePoisoned indicates an earlier panic left the connection unusable.
	CodePoisoned ErrorCode = "POISONED"

	// CodeClosed indicates the handle was already closed.
	CodeClosed ErrorCode = "CLOSED"
)

var (
	// ErrPoisoned is wrapped by every error returned after a panic occurred
	// while the connection lock was held.
	ErrPoisoned = errors.New("store connection poisoned by an earlier panic")

	// ErrClosed is wrapped by errors returned from a closed handle.
	ErrClosed = errors.New("store is closed")

	// ErrDuplicateBlock is wrapped when a block number is already stored.
	ErrDuplicateBlock = errors.New("block number already stored")

	// ErrNilAccount is wrapped when an upsert update function returns no account.
	ErrNilAccount = errors.New("update function returned nil account")
)

// Error is the single error type returned across the store boundary.
//
// Callers branch on Code (or the Is* helpers); the wrapped error carries
// the engine or codec detail and remains reachable through errors.Is/As.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the store operation that failed (e.g. "get block").
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// wrapError converts err into a store error, keeping the code of an
// existing *Error and defaulting to fallback otherwise.
func wrapError(fallback ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return newError(fallback, op, err)
}

// ErrorCodeOf returns the code of a store error, or "" for other errors.
func ErrorCodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsInitializationError reports whether err is a schema creation failure.
func IsInitializationError(err error) bool {
	return ErrorCodeOf(err) == CodeInitialization
}

// IsTransactionError reports whether err is a rolled-back write.
func IsTransactionError(err error) bool {
	return ErrorCodeOf(err) == CodeTransaction
}

// IsSerializationError reports whether err is a payload codec failure.
func IsSerializationError(err error) bool {
	return ErrorCodeOf(err) == CodeSerialization
}

// IsLookupInconsistency reports whether err is a missing row that must exist.
func IsLookupInconsistency(err error) bool {
	return ErrorCodeOf(err) == CodeLookupInconsistency
}

// IsPoisoned reports whether err comes from a poisoned connection.
func IsPoisoned(err error) bool {
	return ErrorCodeOf(err) == CodePoisoned
}
