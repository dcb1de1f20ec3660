// Package diag is the bridge between a driver's per-statement outcome and
// the portable error taxonomy in package errs.
//
// Every statement a Session runs returns a Status by value. There is no
// shared status area: the caller inspects the value it got back, before it
// looks at any output buffer.
//
// Status.Code follows the embedded-SQL convention the layer was modelled on:
//
//	0          success
//	> 0        warning (EndOfData codes 100 and 1403 included)
//	< 0        error
//
// OK is the permissive check (errors fail, warnings pass). OKStrict fails on
// anything but a clean success, including end of data and truncation.
package diag

import (
	"context"
	"errors"
	"fmt"

	"github.com/koustreak/empdb/internal/errs"
)

// End-of-data codes. Consumers treat either as a normal loop exit.
const (
	CodeNotFound    int64 = 100  // ANSI "no data"
	CodeNoDataFound int64 = 1403 // vendor "no data found"
)

// CodeGeneric is the numeric code of a failure for which the driver has no
// native number (for example a Postgres SQLSTATE or a client-side error).
const CodeGeneric int64 = -1

const warnMarker = 'W'

// Status is the outcome of one statement.
type Status struct {
	Code     int64   // numeric code, see package doc
	SQLState string  // five-character SQLSTATE when the driver reports one
	Warn     [2]byte // Warn[0]=='W' some warning; Warn[1]=='W' a value was truncated
	Rows     int64   // rows affected, or rows fetched by this call
	Message  string  // driver message text

	// Class is the taxonomy code a failure maps to. Unused on success.
	Class errs.Code
	Cause error
}

// --- Constructors used by drivers ---

// Success reports a clean statement that affected or fetched rows rows.
func Success(rows int64) Status {
	return Status{Rows: rows}
}

// EndOfData reports that a cursor or single-row query ran out of rows after
// producing rows rows.
func EndOfData(rows int64) Status {
	return Status{Code: CodeNotFound, Rows: rows, Message: "no data found"}
}

// Failure reports a failed statement.
func Failure(class errs.Code, code int64, sqlState, msg string, cause error) Status {
	if code >= 0 {
		code = CodeGeneric
	}
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return Status{Code: code, SQLState: sqlState, Message: msg, Class: class, Cause: cause}
}

// Closed is the status of a statement that never ran because the handle
// has no live execution context.
func Closed(msg string) Status {
	return Failure(errs.CodeConnClosed, CodeGeneric, "", msg, nil)
}

// WithTruncation returns s with the truncation warning markers set.
func (s Status) WithTruncation() Status {
	s.Warn[0] = warnMarker
	s.Warn[1] = warnMarker
	return s
}

// --- Checks ---

// OK is the permissive check: it fails only when the status code is negative.
func (s Status) OK() bool { return s.Code >= 0 }

// OKStrict fails on any non-zero code and on any warning marker.
func (s Status) OKStrict() bool { return s.Code == 0 && s.Warn[0] != warnMarker }

// Truncated reports whether a fetched value did not fit its destination.
func (s Status) Truncated() bool { return s.Warn[0] == warnMarker && s.Warn[1] == warnMarker }

// EndOfData reports the "no more rows" signal.
func (s Status) EndOfData() bool { return s.Code == CodeNotFound || s.Code == CodeNoDataFound }

// RowCount is the number of rows affected or fetched by the statement.
func (s Status) RowCount() int64 { return s.Rows }

// Err converts a failed status into an *errs.Error tagged with step. It
// returns nil when the permissive check passes.
func (s Status) Err(step string) error {
	if s.OK() {
		return nil
	}
	return s.toError(step)
}

// StrictErr is Err for the strict check. End of data becomes CodeNoData and
// a warning becomes CodeErr.
func (s Status) StrictErr(step string) error {
	if s.OKStrict() {
		return nil
	}
	if s.OK() {
		if s.EndOfData() {
			return errs.New(errs.CodeNoData, step+": no data found")
		}
		return errs.Newf(errs.CodeErr, "%s: warning %s", step, s.describe())
	}
	return s.toError(step)
}

func (s Status) toError(step string) error {
	class := s.Class
	if class == errs.CodeOK {
		class = errs.CodeErr
	}
	return errs.Wrap(class, fmt.Sprintf("%s: %s", step, s.describe()), s.Cause)
}

func (s Status) describe() string {
	msg := s.Message
	if msg == "" {
		msg = "statement failed"
	}
	if s.SQLState != "" {
		return fmt.Sprintf("code=%d sqlstate=%s %s", s.Code, s.SQLState, msg)
	}
	return fmt.Sprintf("code=%d %s", s.Code, msg)
}

// FromError maps the failures every driver shares: a taxonomy error raised
// inside a sink, and context expiry or cancellation. ok is false when err
// needs driver-specific mapping.
func FromError(err error) (st Status, ok bool) {
	var e *errs.Error
	if errors.As(err, &e) {
		return Failure(e.Code, CodeGeneric, "", e.Message, err), true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Failure(errs.CodeTimeout, CodeGeneric, "", "", err), true
	}
	return Status{}, false
}
