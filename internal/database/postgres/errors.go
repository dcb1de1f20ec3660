package postgres

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

// PostgreSQL SQLSTATE codes the bridge distinguishes.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrLockNotAvailable     = "55P03"
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	pgErrQueryCanceled        = "57014"
	pgErrInFailedTx           = "25P02"
	pgErrActiveTx             = "25001"
	pgErrNoActiveTx           = "25P01"

	pgClassConnection    = "08"
	pgClassOperatorAbort = "57P"
)

// mapStatus translates a pgx / pgconn error raised by a statement into a
// diag.Status. A failure that is not a server error is a lost connection
// only if the connection really is closed; otherwise it is a client-side
// error such as a scan type mismatch.
func (s *Session) mapStatus(err error) diag.Status {
	if st, ok := diag.FromError(err); ok {
		return st
	}
	if pgconn.Timeout(err) {
		return diag.Failure(errs.CodeTimeout, diag.CodeGeneric, "", "", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return diag.Failure(classify(pgErr.Code), diag.CodeGeneric, pgErr.Code, pgErr.Message, err)
	}

	if !s.Alive() {
		return diag.Failure(errs.CodeConnUnknown, diag.CodeGeneric, "", "", err)
	}
	return diag.Failure(errs.CodeErr, diag.CodeGeneric, "", "", err)
}

// classify maps a SQLSTATE to the taxonomy.
func classify(code string) errs.Code {
	switch {
	case code == pgErrLockNotAvailable:
		return errs.CodeLockTableFailed
	case code == pgErrSerializationFailure, code == pgErrDeadlockDetected:
		return errs.CodeTxRollback
	case code == pgErrQueryCanceled:
		return errs.CodeTimeout
	case code == pgErrActiveTx, code == pgErrNoActiveTx:
		return errs.CodeTxCreateErr
	case strings.HasPrefix(code, pgClassConnection), strings.HasPrefix(code, pgClassOperatorAbort):
		return errs.CodeConnUnknown
	default:
		return errs.CodeErr
	}
}

// mapConnectError translates a login failure. A server that answered (bad
// password, unknown database) or a host that could not be reached is
// CodeConnErr; anything else leaves the connection state unknown.
func mapConnectError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return errs.Wrap(errs.CodeTimeout, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(errs.CodeConnErr, msg+": "+pgErr.Message, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.Wrap(errs.CodeTimeout, msg, err)
		}
		return errs.Wrap(errs.CodeConnErr, msg, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return errs.Wrap(errs.CodeConnErr, msg, err)
	}
	return errs.Wrap(errs.CodeConnUnknown, msg, err)
}

func cursorClosed() diag.Status {
	return diag.Failure(errs.CodeErr, diag.CodeGeneric, "", "fetch on a closed cursor", nil)
}
