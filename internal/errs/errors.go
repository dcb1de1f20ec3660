// Package errs provides the unified error type used across all of empdb.
//
// Every subsystem (connection manager, transaction control, CRUD, fetch,
// filestore, …) wraps its native errors into *errs.Error before returning
// them to callers. Callers branch on the Code or use the Is* predicates
// without importing driver-specific packages.
//
// Success is a nil error. CodeOf(nil) reports CodeOK, which is also the
// value of CodeConnOpenOK and CodeTxCommitOK: the meaning of 0 depends on
// which operation returned it.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.CodeTimeout, "statement timed out", pgErr)
//
//	// In a caller, branch on the outcome:
//	if errs.IsLockTableFailed(err) {
//	    // back off and retry
//	}
package errs

import (
	"errors"
	"fmt"
)

// Code is the closed set of outcome codes shared by every component.
type Code int

const (
	CodeOK               Code = 0
	CodeConnOpenOK       Code = 0
	CodeTxCommitOK       Code = 0
	CodeAllocationFailed Code = 1  // nowhere to allocate the handle into
	CodeAlreadyAllocated Code = 2  // output slot already holds a live handle
	CodeConnClosed       Code = 3  // handle not open
	CodeConnErr          Code = 4  // login / reachability failure
	CodeConnUnknown      Code = 5  // connection state lost mid-call
	CodeTimeout          Code = 6  // deadline exceeded
	CodeErr              Code = 7  // generic database error
	CodeNoData           Code = 8  // no data found
	CodeLockTableFailed  Code = 9  // exclusive lock not acquired
	CodeTxRollback       Code = 10 // unit of work was rolled back
	CodeTxCreateErr      Code = 11 // transaction could not be started

	// CodeInvalidName marks a client-side validation failure (malformed
	// savepoint or table identifier). It sits in the runtime's user-defined
	// error range so it never aliases a server outcome.
	CodeInvalidName Code = -20001
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeAllocationFailed:
		return "allocation_failed"
	case CodeAlreadyAllocated:
		return "already_allocated"
	case CodeConnClosed:
		return "conn_closed"
	case CodeConnErr:
		return "conn_error"
	case CodeConnUnknown:
		return "conn_unknown"
	case CodeTimeout:
		return "timeout"
	case CodeErr:
		return "error"
	case CodeNoData:
		return "no_data"
	case CodeLockTableFailed:
		return "lock_table_failed"
	case CodeTxRollback:
		return "tx_rollback"
	case CodeTxCreateErr:
		return "tx_create_error"
	case CodeInvalidName:
		return "invalid_name"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is the single error type returned by all empdb subsystems.
type Error struct {
	Code    Code
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given code and message and no cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given code, message, and an underlying cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// --- Predicates ---

// CodeOf extracts the Code from any error in the chain. A nil error is
// CodeOK; an error that is not an *Error is CodeErr.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeErr
}

func IsConnClosed(err error) bool      { return err != nil && CodeOf(err) == CodeConnClosed }
func IsConnErr(err error) bool         { return err != nil && CodeOf(err) == CodeConnErr }
func IsConnUnknown(err error) bool     { return err != nil && CodeOf(err) == CodeConnUnknown }
func IsTimeout(err error) bool         { return err != nil && CodeOf(err) == CodeTimeout }
func IsNoData(err error) bool          { return err != nil && CodeOf(err) == CodeNoData }
func IsLockTableFailed(err error) bool { return err != nil && CodeOf(err) == CodeLockTableFailed }
func IsTxRollback(err error) bool      { return err != nil && CodeOf(err) == CodeTxRollback }
func IsTxCreateErr(err error) bool     { return err != nil && CodeOf(err) == CodeTxCreateErr }
func IsInvalidName(err error) bool     { return err != nil && CodeOf(err) == CodeInvalidName }

// IsConnectionState reports whether err is one of the recoverable
// connection-state outcomes (closed, unknown, timeout, login failure).
// Callers recover from these by reopening the handle.
func IsConnectionState(err error) bool {
	switch CodeOf(err) {
	case CodeConnClosed, CodeConnErr, CodeConnUnknown, CodeTimeout:
		return err != nil
	}
	return false
}
