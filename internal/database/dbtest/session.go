// Package dbtest provides a scripted database.Session that records every
// statement it is given. Tests use it to check what was sent, and what was
// not, without a server.
package dbtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

// Session is a recording database.Session.
type Session struct {
	dialect    database.Dialect
	statements []string
	failures   []failure
	rows       map[string][][]any
	closed     bool
	alive      bool
}

type failure struct {
	match string
	st    diag.Status
}

// New returns an open Session speaking d.
func New(d database.Dialect) *Session {
	return &Session{dialect: d, rows: map[string][][]any{}, alive: true}
}

// Opener returns an opener that hands out s.
func (s *Session) Opener() database.Opener {
	return func(context.Context, *database.Config) (database.Session, error) {
		s.closed = false
		s.alive = true
		return s, nil
	}
}

// FailOn makes every statement containing match return st.
func (s *Session) FailOn(match string, st diag.Status) {
	s.failures = append(s.failures, failure{match: match, st: st})
}

// Reset forgets recorded statements and scripted failures.
func (s *Session) Reset() {
	s.statements = nil
	s.failures = nil
}

// Returns scripts the rows of queries containing match. A single-row query
// scans the first row.
func (s *Session) Returns(match string, rows ...[]any) {
	s.rows[match] = rows
}

// Kill makes Alive report false.
func (s *Session) Kill() { s.alive = false }

// Statements are the statements received so far, in order.
func (s *Session) Statements() []string {
	return append([]string(nil), s.statements...)
}

// Sent reports whether any statement received contains match.
func (s *Session) Sent(match string) bool {
	for _, q := range s.statements {
		if strings.Contains(q, match) {
			return true
		}
	}
	return false
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.closed }

func (s *Session) Dialect() database.Dialect { return s.dialect }

func (s *Session) Exec(_ context.Context, query string, _ ...any) diag.Status {
	if st, failed := s.record(query); failed {
		return st
	}
	return diag.Success(1)
}

func (s *Session) QueryRow(_ context.Context, query string, _ []any, dest ...any) diag.Status {
	if st, failed := s.record(query); failed {
		return st
	}
	rows := s.lookup(query)
	if len(rows) == 0 {
		return diag.EndOfData(0)
	}
	if err := assign(rows[0], dest); err != nil {
		return diag.Failure(errs.CodeErr, diag.CodeGeneric, "", "", err)
	}
	return diag.Success(1)
}

func (s *Session) OpenCursor(_ context.Context, query string, _ ...any) (database.Cursor, diag.Status) {
	if st, failed := s.record(query); failed {
		return nil, st
	}
	return &cursor{rows: s.lookup(query)}, diag.Success(0)
}

func (s *Session) Alive() bool { return !s.closed && s.alive }

func (s *Session) Close(context.Context) error {
	s.closed = true
	return nil
}

func (s *Session) record(query string) (diag.Status, bool) {
	s.statements = append(s.statements, query)
	for _, f := range s.failures {
		if strings.Contains(query, f.match) {
			return f.st, true
		}
	}
	return diag.Status{}, false
}

func (s *Session) lookup(query string) [][]any {
	for match, rows := range s.rows {
		if strings.Contains(query, match) {
			return rows
		}
	}
	return nil
}

type cursor struct {
	rows [][]any
	pos  int
}

func (c *cursor) Fetch(_ context.Context, n int, sink database.Sink) diag.Status {
	batch, err := database.Drain(c, n, sink)
	if err != nil {
		if st, ok := diag.FromError(err); ok {
			return st
		}
		return diag.Failure(errs.CodeErr, diag.CodeGeneric, "", "", err)
	}
	return batch.Status()
}

func (c *cursor) Close(context.Context) diag.Status { return diag.Success(0) }

func (c *cursor) Next() bool {
	if c.pos >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Scan(dest ...any) error { return assign(c.rows[c.pos-1], dest) }

func (c *cursor) Err() error { return nil }

// assign copies row values into scan destinations of the kinds the row
// operations use.
func assign(row []any, dest []any) error {
	if len(row) != len(dest) {
		return fmt.Errorf("dbtest: row has %d values, scan wants %d", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *int64:
			*d = toInt64(v)
		case *int32:
			*d = int32(toInt64(v))
		case *float64:
			*d = v.(float64)
		case *string:
			*d = v.(string)
		case **string:
			if v == nil {
				*d = nil
			} else {
				str := v.(string)
				*d = &str
			}
		default:
			return fmt.Errorf("dbtest: unsupported scan destination %T", dest[i])
		}
	}
	return nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	default:
		panic(fmt.Sprintf("dbtest: %T is not an integer", v))
	}
}
