// Package postgres implements database.Session for PostgreSQL on a single
// pgx connection. One Session is one server backend; it is never pooled.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

const defaultPort = 5432

// Session is a PostgreSQL execution context backed by one *pgx.Conn.
type Session struct {
	conn    *pgx.Conn
	cursors int // sequence for server-side cursor names
}

// Open logs in with cfg and returns a live Session.
func Open(ctx context.Context, cfg *database.Config) (database.Session, error) {
	connCfg, err := buildConnConfig(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, mapConnectError(err, "failed to log in")
	}
	return &Session{conn: conn}, nil
}

// --- database.Session implementation ---

func (s *Session) Dialect() database.Dialect { return database.DialectPostgres }

// Exec runs a statement that returns no rows. A COMMIT that the server
// answers with ROLLBACK (the transaction had already failed) is reported as
// a rolled-back unit of work.
func (s *Session) Exec(ctx context.Context, query string, args ...any) diag.Status {
	tag, err := s.conn.Exec(ctx, query, args...)
	if err != nil {
		return s.mapStatus(err)
	}
	if query == database.StmtCommit && tag.String() == "ROLLBACK" {
		return diag.Failure(errs.CodeTxRollback, diag.CodeGeneric, pgErrInFailedTx,
			"commit turned into rollback: transaction had already failed", nil)
	}
	return diag.Success(tag.RowsAffected())
}

// QueryRow runs a single-row query and scans it into dest.
func (s *Session) QueryRow(ctx context.Context, query string, args []any, dest ...any) diag.Status {
	err := s.conn.QueryRow(ctx, query, args...).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return diag.EndOfData(0)
		}
		return s.mapStatus(err)
	}
	return diag.Success(1)
}

// OpenCursor declares a server-side cursor so that every Fetch is one
// FETCH FORWARD round trip. WITH HOLD keeps it usable outside an explicit
// transaction. Parameterized queries stream over the extended protocol
// instead, since DECLARE takes no bind arguments.
func (s *Session) OpenCursor(ctx context.Context, query string, args ...any) (database.Cursor, diag.Status) {
	if len(args) > 0 {
		rows, err := s.conn.Query(ctx, query, args...)
		if err != nil {
			return nil, s.mapStatus(err)
		}
		return &streamCursor{s: s, rows: rows}, diag.Success(0)
	}

	s.cursors++
	name := fmt.Sprintf("empdb_cur_%d", s.cursors)
	if _, err := s.conn.Exec(ctx, fmt.Sprintf("DECLARE %s NO SCROLL CURSOR WITH HOLD FOR %s", name, query)); err != nil {
		return nil, s.mapStatus(err)
	}
	return &serverCursor{s: s, name: name}, diag.Success(0)
}

// Alive reports whether the underlying connection is still open. It does
// not talk to the server.
func (s *Session) Alive() bool {
	return s.conn != nil && !s.conn.IsClosed()
}

// Close logs off. Closing an already closed session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	if err != nil {
		return mapConnectError(err, "failed to log off")
	}
	return nil
}
