package conn

import (
	"context"

	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

// txState is the transaction attached to the session. At most one is
// active at a time.
type txState struct {
	active   bool
	implicit bool // started by the handle before a write, not by Begin
	opts     database.TxOptions
}

// Begin starts a unit of work with opts. A transaction already active on
// the handle is rejected with CodeTxCreateErr before anything is sent.
func (h *Handle) Begin(ctx context.Context, opts database.TxOptions) error {
	if _, st := h.ready(); !st.OK() {
		return st.Err("begin")
	}
	if h.tx.active {
		return errs.New(errs.CodeTxCreateErr, "begin: a transaction is already active")
	}
	return h.begin(ctx, opts, false)
}

func (h *Handle) BeginRW(ctx context.Context) error {
	return h.Begin(ctx, database.TxOptions{Access: database.ReadWrite})
}

func (h *Handle) BeginRWReadCommitted(ctx context.Context) error {
	return h.Begin(ctx, database.TxOptions{Access: database.ReadWrite, Isolation: database.IsolationReadCommitted})
}

func (h *Handle) BeginRWSerializable(ctx context.Context) error {
	return h.Begin(ctx, database.TxOptions{Access: database.ReadWrite, Isolation: database.IsolationSerializable})
}

func (h *Handle) BeginRO(ctx context.Context) error {
	return h.Begin(ctx, database.TxOptions{Access: database.ReadOnly})
}

func (h *Handle) BeginROReadCommitted(ctx context.Context) error {
	return h.Begin(ctx, database.TxOptions{Access: database.ReadOnly, Isolation: database.IsolationReadCommitted})
}

func (h *Handle) BeginROSerializable(ctx context.Context) error {
	return h.Begin(ctx, database.TxOptions{Access: database.ReadOnly, Isolation: database.IsolationSerializable})
}

// EnsureTx starts an implicit read-write transaction when none is active.
// Row writes call it so their changes stay pending until Commit.
func (h *Handle) EnsureTx(ctx context.Context) error {
	if _, st := h.ready(); !st.OK() {
		return st.Err("begin")
	}
	if h.tx.active {
		return nil
	}
	return h.begin(ctx, database.TxOptions{Access: database.ReadWrite}, true)
}

func (h *Handle) begin(ctx context.Context, opts database.TxOptions, implicit bool) error {
	stmts := h.Dialect().BeginTx(opts)
	for i, q := range stmts {
		st := h.Exec(ctx, "begin", q)
		if st.OK() {
			continue
		}
		if i > 0 {
			// The engine may already be inside the transaction.
			h.Exec(ctx, "begin", database.StmtRollback)
		}
		return txCreateErr(st)
	}
	h.tx = txState{active: true, implicit: implicit, opts: opts}
	h.log.With().
		Str("access", opts.Access.String()).
		Str("isolation", opts.Isolation.String()).
		Bool("implicit", implicit).
		Logger().
		Debug("transaction started")
	return nil
}

// txCreateErr reports a failed begin as CodeTxCreateErr unless the
// connection itself is in question.
func txCreateErr(st diag.Status) error {
	err := st.Err("begin")
	if errs.IsConnectionState(err) {
		return err
	}
	return errs.Wrap(errs.CodeTxCreateErr, "begin: could not start transaction", err)
}

// InTx reports whether a transaction is active.
func (h *Handle) InTx() bool { return h.tx.active }

// Commit makes the pending changes permanent. With no transaction active
// there is nothing to commit and nothing is sent. A commit the database
// refuses is rolled back and reported as CodeTxRollback.
func (h *Handle) Commit(ctx context.Context) error {
	if _, st := h.ready(); !st.OK() {
		return st.Err("commit")
	}
	if !h.tx.active {
		return nil
	}

	opts := h.tx.opts
	st := h.Exec(ctx, "commit", database.StmtCommit)
	if !st.OK() {
		err := st.Err("commit")
		if errs.IsConnectionState(err) {
			h.tx = txState{}
			return err
		}
		h.Exec(ctx, "commit", database.StmtRollback)
		h.endTx(ctx, opts)
		if errs.IsTxRollback(err) {
			return err
		}
		return errs.Wrap(errs.CodeTxRollback, "commit failed, transaction rolled back", err)
	}
	h.endTx(ctx, opts)
	return nil
}

// Rollback discards every change since the transaction began. With no
// transaction active nothing is sent.
func (h *Handle) Rollback(ctx context.Context) error {
	if _, st := h.ready(); !st.OK() {
		return st.Err("rollback")
	}
	if !h.tx.active {
		return nil
	}

	opts := h.tx.opts
	st := h.Exec(ctx, "rollback", database.StmtRollback)
	h.endTx(ctx, opts)
	return st.Err("rollback")
}

func (h *Handle) endTx(ctx context.Context, opts database.TxOptions) {
	h.tx = txState{}
	for _, q := range h.Dialect().EndTx(opts) {
		h.Exec(ctx, "end transaction", q)
	}
}

// Savepoint marks a point in the current transaction that RollbackTo can
// return to, starting an implicit transaction if needed. The name must be
// 1 to 30 bytes, begin with a letter or '_', and continue with letters,
// digits, '_', '$' or '#'. It is upper-cased before use. An invalid name
// fails with CodeInvalidName and nothing is sent.
func (h *Handle) Savepoint(ctx context.Context, name string) error {
	norm, ok := database.NormalizeIdentifier(name)
	if !ok {
		return errs.Newf(errs.CodeInvalidName, "savepoint: invalid name %q", name)
	}
	if err := h.EnsureTx(ctx); err != nil {
		return err
	}
	return h.Exec(ctx, "savepoint", h.Dialect().Savepoint(norm)).Err("savepoint")
}

// RollbackTo undoes the work done after the named savepoint and keeps
// everything before it. Names are validated as in Savepoint.
func (h *Handle) RollbackTo(ctx context.Context, name string) error {
	norm, ok := database.NormalizeIdentifier(name)
	if !ok {
		return errs.Newf(errs.CodeInvalidName, "rollback to savepoint: invalid name %q", name)
	}
	return h.Exec(ctx, "rollback to savepoint", h.Dialect().RollbackToSavepoint(norm)).Err("rollback to savepoint")
}
