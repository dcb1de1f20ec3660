package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// classify maps a SQLite result code to a status. The numeric code is the
// negated extended result code.
func classify(err error) (diag.Status, bool) {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return diag.Status{}, false
	}
	code := liteErr.Code()
	return diag.Failure(classifyCode(code, liteErr.Error()), -int64(code), "", "", err), true
}

func classifyCode(code int, msg string) errs.Code {
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return errs.CodeLockTableFailed
	case sqlite3.SQLITE_INTERRUPT:
		return errs.CodeTimeout
	case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return errs.CodeConnUnknown
	case sqlite3.SQLITE_ERROR:
		// SQLite reports transaction misuse as a plain error.
		if strings.Contains(msg, "within a transaction") {
			return errs.CodeTxCreateErr
		}
		return errs.CodeErr
	default:
		return errs.CodeErr
	}
}

// mapConnectError translates a failure to open the database file.
func mapConnectError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.CodeTimeout, msg, err)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_BUSY {
		return errs.Wrap(errs.CodeTimeout, msg, err)
	}
	return errs.Wrap(errs.CodeConnErr, msg, err)
}
