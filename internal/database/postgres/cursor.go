package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/diag"
)

// serverCursor pulls batches from a DECLAREd cursor.
type serverCursor struct {
	s      *Session
	name   string
	done   bool // exhausted
	closed bool
}

func (c *serverCursor) Fetch(ctx context.Context, n int, sink database.Sink) diag.Status {
	if c.closed {
		return cursorClosed()
	}
	if c.done {
		return diag.EndOfData(0)
	}
	if n <= 0 {
		return diag.Success(0)
	}

	rows, err := c.s.conn.Query(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", n, c.name))
	if err != nil {
		return c.s.mapStatus(err)
	}
	batch, err := database.Drain(rows, n, sink)
	rows.Close()
	if err == nil {
		err = rows.Err()
	}
	if err != nil {
		return c.s.mapStatus(err)
	}

	c.done = batch.Exhausted
	return batch.Status()
}

func (c *serverCursor) Close(ctx context.Context) diag.Status {
	if c.closed {
		return diag.Success(0)
	}
	c.closed = true
	if !c.s.Alive() {
		return diag.Success(0)
	}
	if _, err := c.s.conn.Exec(ctx, "CLOSE "+c.name); err != nil {
		return c.s.mapStatus(err)
	}
	return diag.Success(0)
}

// streamCursor batches rows of an ordinary extended-protocol query.
type streamCursor struct {
	s      *Session
	rows   pgx.Rows
	closed bool
}

func (c *streamCursor) Fetch(_ context.Context, n int, sink database.Sink) diag.Status {
	if c.closed {
		return cursorClosed()
	}
	batch, err := database.Drain(c.rows, n, sink)
	if err != nil {
		return c.s.mapStatus(err)
	}
	return batch.Status()
}

func (c *streamCursor) Close(context.Context) diag.Status {
	if c.closed {
		return diag.Success(0)
	}
	c.closed = true
	c.rows.Close()
	if err := c.rows.Err(); err != nil {
		return c.s.mapStatus(err)
	}
	return diag.Success(0)
}
