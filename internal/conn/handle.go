// Package conn is the connection manager. A Handle owns exactly one
// database.Session, the credentials it logs in with, and the transaction
// attached to it.
//
// A Handle performs no internal locking. Callers that share one between
// goroutines must serialise access themselves.
//
// Lifecycle:
//
//	var h *conn.Handle
//	if err := conn.Create(&h, cfg); err != nil { … }   // disconnected
//	if err := h.Open(ctx); err != nil { … }            // logged in
//	…                                                  // statements
//	_ = h.Close(ctx)                                   // idempotent
//	_ = conn.Destroy(ctx, &h)                          // h == nil afterwards
package conn

import (
	"context"

	"github.com/google/uuid"
	"github.com/koustreak/empdb/internal/bounded"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/errs"
	"github.com/koustreak/empdb/internal/logger"
)

// Handle is one connection handle.
type Handle struct {
	id     uuid.UUID
	cfg    database.Config
	opener database.Opener
	log    *logger.Logger

	user     bounded.Text
	password bounded.Text
	target   bounded.Text

	session database.Session
	broken  bool
	tx      txState
}

// Option customises a Handle at creation.
type Option func(*Handle)

// WithLogger sets the parent logger. The handle logs through a child
// carrying its id and driver.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handle) { h.log = l }
}

// WithOpener replaces the driver chosen from Config.Driver.
func WithOpener(o database.Opener) Option {
	return func(h *Handle) { h.opener = o }
}

// New allocates a disconnected handle. The credentials are copied into
// bounded storage; a value that does not fit is cut and the cut is logged.
// A nil cfg means database.DefaultConfig().
func New(cfg *database.Config, opts ...Option) (*Handle, error) {
	if cfg == nil {
		cfg = database.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handle{
		id:       uuid.New(),
		cfg:      *cfg,
		user:     bounded.NewText(database.UserSize - 1),
		password: bounded.NewText(database.PasswordSize - 1),
		target:   bounded.NewText(database.TargetSize - 1),
	}
	if h.cfg.Truncation == "" {
		h.cfg.Truncation = database.TruncationLog
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.log == nil {
		h.log = logger.Nop()
	}
	h.log = h.log.With().
		Str("handle", h.id.String()).
		Str("driver", string(cfg.Driver)).
		Logger()

	if h.opener == nil {
		o, err := openerFor(cfg.Driver)
		if err != nil {
			return nil, err
		}
		h.opener = o
	}

	h.setCredential("user", &h.user, cfg.User)
	h.setCredential("password", &h.password, cfg.Password)
	h.setCredential("target", &h.target, cfg.Target)
	h.cfg.Credentials = database.Credentials{}

	return h, nil
}

func (h *Handle) setCredential(field string, dst *bounded.Text, v string) {
	if res := dst.Set(v); res.Truncated {
		h.log.WarnWith("credential truncated", map[string]interface{}{
			"field": field,
			"kept":  res.Len,
			"given": res.SourceLen,
		})
	}
}

// Create allocates a handle into *slot. A nil slot is CodeAllocationFailed
// and a slot that already holds a handle is CodeAlreadyAllocated; in both
// cases *slot is left untouched.
func Create(slot **Handle, cfg *database.Config, opts ...Option) error {
	if slot == nil {
		return errs.New(errs.CodeAllocationFailed, "no slot to allocate the handle into")
	}
	if *slot != nil {
		return errs.New(errs.CodeAlreadyAllocated, "slot already holds a handle")
	}
	h, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	*slot = h
	return nil
}

// Destroy closes the handle in *slot if it is still open and clears the
// slot. A nil slot or an empty slot is a no-op. The slot is cleared even
// when logging off fails.
func Destroy(ctx context.Context, slot **Handle) error {
	if slot == nil || *slot == nil {
		return nil
	}
	h := *slot
	*slot = nil
	return h.Close(ctx)
}

// ID identifies the handle in logs.
func (h *Handle) ID() uuid.UUID { return h.id }

// Config returns the settings the handle logs in with, credentials as
// stored.
func (h *Handle) Config() database.Config {
	cfg := h.cfg
	cfg.Credentials = database.Credentials{
		User:     h.user.String(),
		Password: h.password.String(),
		Target:   h.target.String(),
	}
	return cfg
}

// Logger is the handle's child logger.
func (h *Handle) Logger() *logger.Logger { return h.log }

// Open logs in. Opening a handle that is already open and live is a no-op.
// A broken or dead session is released first, so Open is also the way to
// recover from a connection-state failure. On failure the handle stays
// disconnected and may be opened again or destroyed.
func (h *Handle) Open(ctx context.Context) error {
	if h.session != nil {
		if !h.broken && h.session.Alive() {
			return nil
		}
		h.release(ctx)
	}

	if h.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.ConnectTimeout)
		defer cancel()
	}

	cfg := h.Config()
	s, err := h.opener(ctx, &cfg)
	if err != nil {
		if errs.CodeOf(err) == errs.CodeErr {
			err = errs.Wrap(errs.CodeConnUnknown, "failed to log in", err)
		}
		h.log.ErrorWith("open failed", err, map[string]interface{}{
			"target": cfg.Target,
			"code":   errs.CodeOf(err).String(),
		})
		return err
	}

	h.session = s
	h.broken = false
	h.tx = txState{}
	h.log.Info("connection opened")
	return nil
}

// IsOpen reports whether the handle has a live session, without talking to
// the server. It returns nil when open and CodeConnClosed otherwise.
func (h *Handle) IsOpen() error {
	switch {
	case h.session == nil:
		return errs.New(errs.CodeConnClosed, "handle not open")
	case h.broken:
		return errs.New(errs.CodeConnClosed, "handle is broken, reopen it")
	case !h.session.Alive():
		return errs.New(errs.CodeConnClosed, "connection lost")
	}
	return nil
}

// Broken reports whether an unrecoverable failure has retired the session.
func (h *Handle) Broken() bool { return h.broken }

// Close logs off. An active transaction is rolled back first. Closing a
// handle that is not open is a no-op.
func (h *Handle) Close(ctx context.Context) error {
	if h.session == nil {
		return nil
	}
	if h.tx.active && !h.broken {
		if err := h.Rollback(ctx); err != nil {
			h.log.ErrorWith("rollback before close failed", err, nil)
		}
	}
	err := h.release(ctx)
	if err != nil {
		h.log.ErrorWith("close failed", err, nil)
		return err
	}
	h.log.Info("connection closed")
	return nil
}

func (h *Handle) release(ctx context.Context) error {
	s := h.session
	h.session = nil
	h.broken = false
	h.tx = txState{}
	return s.Close(ctx)
}
