// Package sqlconn implements database.Session over database/sql for the
// engines reached through a database/sql driver (MySQL, SQLite).
//
// The *sql.DB is held to a single connection and that connection is pinned
// with DB.Connx for the life of the Session, so session state (the open
// transaction, savepoints, locks, PRAGMAs) is never split across physical
// connections.
package sqlconn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

// Classifier maps a driver-specific error to a status. ok is false when the
// error is not one the driver recognises.
type Classifier func(err error) (st diag.Status, ok bool)

// Session is an execution context on one pinned database/sql connection.
type Session struct {
	db       *sqlx.DB
	conn     *sqlx.Conn
	dialect  database.Dialect
	classify Classifier
	lost     bool // the driver reported the connection unusable
}

// Open opens driverName with dsn and pins one connection. The returned
// error is the driver's own; callers translate it.
func Open(ctx context.Context, driverName, dsn string, d database.Dialect, classify Classifier) (*Session, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	conn, err := db.Connx(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	return &Session{db: db, conn: conn, dialect: d, classify: classify}, nil
}

// --- database.Session implementation ---

func (s *Session) Dialect() database.Dialect { return s.dialect }

func (s *Session) Exec(ctx context.Context, query string, args ...any) diag.Status {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return s.mapStatus(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Statements without a row count (BEGIN, PRAGMA, SAVEPOINT).
		return diag.Success(0)
	}
	return diag.Success(n)
}

func (s *Session) QueryRow(ctx context.Context, query string, args []any, dest ...any) diag.Status {
	err := s.conn.QueryRowxContext(ctx, query, args...).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return diag.EndOfData(0)
		}
		return s.mapStatus(err)
	}
	return diag.Success(1)
}

func (s *Session) OpenCursor(ctx context.Context, query string, args ...any) (database.Cursor, diag.Status) {
	rows, err := s.conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapStatus(err)
	}
	return &cursor{s: s, rows: rows}, diag.Success(0)
}

// Alive asks the driver whether the pinned connection is still valid,
// without a round trip. Drivers that cannot tell are assumed alive.
func (s *Session) Alive() bool {
	if s.conn == nil || s.lost {
		return false
	}
	err := s.conn.Raw(func(dc any) error {
		if v, ok := dc.(driver.Validator); ok && !v.IsValid() {
			return driver.ErrBadConn
		}
		return nil
	})
	return err == nil
}

// Close releases the pinned connection and the pool behind it.
func (s *Session) Close(context.Context) error {
	if s.conn == nil {
		return nil
	}
	connErr := s.conn.Close()
	dbErr := s.db.Close()
	s.conn, s.db = nil, nil
	if err := errors.Join(connErr, dbErr); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.CodeConnUnknown, "failed to log off", err)
	}
	return nil
}

// mapStatus translates a statement error. Shared failures first, then the
// driver's own codes, then database/sql's lost-connection sentinels.
func (s *Session) mapStatus(err error) diag.Status {
	if st, ok := diag.FromError(err); ok {
		return st
	}
	if st, ok := s.classify(err); ok {
		if st.Class == errs.CodeConnUnknown {
			s.lost = true
		}
		return st
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		s.lost = true
		return diag.Failure(errs.CodeConnUnknown, diag.CodeGeneric, "", "", err)
	}
	return diag.Failure(errs.CodeErr, diag.CodeGeneric, "", "", err)
}

// cursor batches rows of a streaming query. The pinned connection is busy
// until it is closed.
type cursor struct {
	s      *Session
	rows   *sqlx.Rows
	closed bool
}

func (c *cursor) Fetch(_ context.Context, n int, sink database.Sink) diag.Status {
	if c.closed {
		return diag.Failure(errs.CodeErr, diag.CodeGeneric, "", "fetch on a closed cursor", nil)
	}
	batch, err := database.Drain(c.rows, n, sink)
	if err != nil {
		return c.s.mapStatus(err)
	}
	return batch.Status()
}

func (c *cursor) Close(context.Context) diag.Status {
	if c.closed {
		return diag.Success(0)
	}
	c.closed = true
	if err := c.rows.Close(); err != nil {
		return c.s.mapStatus(err)
	}
	return diag.Success(0)
}
