package conn

import (
	"context"

	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

// Dialect is the SQL dialect of the configured driver.
func (h *Handle) Dialect() database.Dialect {
	if h.session != nil {
		return h.session.Dialect()
	}
	switch h.cfg.Driver {
	case database.DriverMySQL:
		return database.DialectMySQL
	case database.DriverSQLite:
		return database.DialectSQLite
	default:
		return database.DialectPostgres
	}
}

// Table is the table the row operations target.
func (h *Handle) Table() string { return h.cfg.Table }

// Truncation is the policy applied when a fetched value does not fit.
func (h *Handle) Truncation() database.TruncationPolicy { return h.cfg.Truncation }

// Exec runs one statement under the statement timeout. step names the
// operation in logs and errors.
func (h *Handle) Exec(ctx context.Context, step, query string, args ...any) diag.Status {
	s, st := h.ready()
	if !st.OK() {
		return st
	}
	ctx, cancel := h.statementContext(ctx)
	defer cancel()
	return h.observe(step, s.Exec(ctx, query, args...))
}

// QueryRow runs a single-row query under the statement timeout. No row is
// diag.EndOfData.
func (h *Handle) QueryRow(ctx context.Context, step, query string, args []any, dest ...any) diag.Status {
	s, st := h.ready()
	if !st.OK() {
		return st
	}
	ctx, cancel := h.statementContext(ctx)
	defer cancel()
	return h.observe(step, s.QueryRow(ctx, query, args, dest...))
}

// OpenCursor starts a query. The statement timeout bounds the cursor's
// whole life, from open to Close. The returned Cursor is nil on failure.
func (h *Handle) OpenCursor(ctx context.Context, step, query string, args ...any) (*Cursor, diag.Status) {
	s, st := h.ready()
	if !st.OK() {
		return nil, st
	}
	ctx, cancel := h.statementContext(ctx)
	cur, st := s.OpenCursor(ctx, query, args...)
	if st = h.observe(step, st); !st.OK() {
		cancel()
		return nil, st
	}
	return &Cursor{h: h, step: step, cur: cur, cancel: cancel}, st
}

// ready returns the session statements run on, or a ConnClosed status when
// there is none to use.
func (h *Handle) ready() (database.Session, diag.Status) {
	if h.session == nil {
		return nil, diag.Closed("handle not open")
	}
	if h.broken {
		return nil, diag.Closed("handle is broken, reopen it")
	}
	return h.session, diag.Success(0)
}

func (h *Handle) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.StatementTimeout > 0 {
		return context.WithTimeout(ctx, h.cfg.StatementTimeout)
	}
	return context.WithCancel(ctx)
}

// observe is the checkpoint every statement result passes through. A
// failure is logged, and a lost connection retires the session.
func (h *Handle) observe(step string, st diag.Status) diag.Status {
	if st.OK() {
		return st
	}
	if st.Class == errs.CodeConnUnknown {
		h.broken = true
	}
	h.log.ErrorWith(step+" failed", st.Cause, map[string]interface{}{
		"step":     step,
		"code":     st.Code,
		"sqlstate": st.SQLState,
		"class":    st.Class.String(),
		"detail":   st.Message,
	})
	return st
}

// Cursor is an open result set bound to the handle that opened it.
type Cursor struct {
	h      *Handle
	step   string
	cur    database.Cursor
	cancel context.CancelFunc
	closed bool
}

// Fetch pulls up to n rows into sink.
func (c *Cursor) Fetch(ctx context.Context, n int, sink database.Sink) diag.Status {
	if c.closed {
		return diag.Failure(errs.CodeErr, diag.CodeGeneric, "", "fetch on a closed cursor", nil)
	}
	if c.h.broken {
		return diag.Closed("handle is broken, reopen it")
	}
	ctx, cancel := c.h.statementContext(ctx)
	defer cancel()
	return c.h.observe(c.step, c.cur.Fetch(ctx, n, sink))
}

// Close releases the cursor. It is safe to call more than once and after a
// failed Fetch.
func (c *Cursor) Close(ctx context.Context) diag.Status {
	if c.closed {
		return diag.Success(0)
	}
	c.closed = true
	defer c.cancel()
	if c.h.session == nil {
		return diag.Success(0)
	}
	return c.h.observe(c.step+" close", c.cur.Close(ctx))
}
