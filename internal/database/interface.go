package database

import (
	"context"

	"github.com/koustreak/empdb/internal/diag"
)

// Session is one execution context: a single physical connection and the
// transaction attached to it. Only internal/conn picks a driver package;
// everything above it talks to this interface.
//
// A Session is not safe for concurrent use. Every call blocks until the
// database replies, and reports its outcome as a diag.Status.
type Session interface {
	// Dialect reports the SQL dialect the session speaks.
	Dialect() Dialect

	// Exec runs a statement that returns no rows. Status.Rows is the
	// affected-row count.
	Exec(ctx context.Context, query string, args ...any) diag.Status

	// QueryRow runs a query expected to produce at most one row and scans
	// it into dest. No row is reported as diag.EndOfData, not as a failure.
	QueryRow(ctx context.Context, query string, args []any, dest ...any) diag.Status

	// OpenCursor starts a query whose rows are pulled with Cursor.Fetch.
	// The returned Cursor is nil when the status is a failure.
	OpenCursor(ctx context.Context, query string, args ...any) (Cursor, diag.Status)

	// Alive is a side-effect-free liveness check; it never talks to the
	// server.
	Alive() bool

	// Close logs off and releases the connection.
	Close(ctx context.Context) error
}

// Cursor is an open result set. It moves from open to exhausted or closed;
// Close is safe to call in every state and more than once.
type Cursor interface {
	// Fetch pulls up to n rows into sink in one batch. Status.Rows is the
	// number of rows this call delivered; EndOfData is set once the result
	// set is exhausted, possibly together with a final partial batch.
	Fetch(ctx context.Context, n int, sink Sink) diag.Status

	// Close discards unread rows and releases the cursor.
	Close(ctx context.Context) diag.Status
}

// Scanner reads the current row.
type Scanner interface {
	Scan(dest ...any) error
}

// Sink consumes one fetched row. It reports whether any value had to be cut
// to fit its destination; the cursor raises the truncation warning on the
// batch status when one did.
type Sink func(row Scanner) (truncated bool, err error)

// Opener logs in with cfg and returns a live Session. Failures are
// *errs.Error with CodeConnErr, CodeConnUnknown or CodeTimeout.
type Opener func(ctx context.Context, cfg *Config) (Session, error)
