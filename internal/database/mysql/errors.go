package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

// MySQL error numbers the bridge distinguishes.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errLockWaitTimeout   = 1205
	errLockDeadlock      = 1213
	errLockNowait        = 3572
	errQueryTimeout      = 3024
	errQueryInterrupted  = 1317
	errCantChangeTxChars = 1568
	errAccessDenied      = 1045
	errDBAccessDenied    = 1044
	errUnknownDatabase   = 1049
	errTooManyConns      = 1040
	errServerShutdown    = 1053
	errConnKilled        = 1927
)

// classify maps a MySQL server error to a status. The numeric code is the
// negated error number.
func classify(err error) (diag.Status, bool) {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		class := classifyNumber(myErr.Number)
		return diag.Failure(class, -int64(myErr.Number), sqlState(myErr), myErr.Message, err), true
	}
	if errors.Is(err, gomysql.ErrInvalidConn) {
		return diag.Failure(errs.CodeConnUnknown, diag.CodeGeneric, "", "", err), true
	}
	return diag.Status{}, false
}

func classifyNumber(n uint16) errs.Code {
	switch n {
	case errLockNowait, errLockWaitTimeout:
		return errs.CodeLockTableFailed
	case errLockDeadlock:
		return errs.CodeTxRollback
	case errQueryTimeout, errQueryInterrupted:
		return errs.CodeTimeout
	case errCantChangeTxChars:
		return errs.CodeTxCreateErr
	case errServerShutdown, errConnKilled:
		return errs.CodeConnUnknown
	default:
		// Duplicate keys, syntax errors, unknown columns, …
		return errs.CodeErr
	}
}

// mapConnectError translates a login failure.
func mapConnectError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.CodeTimeout, msg, err)
	}

	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errAccessDenied, errDBAccessDenied, errUnknownDatabase, errTooManyConns:
			return errs.Wrap(errs.CodeConnErr, msg+": "+myErr.Message, err)
		}
		return errs.Wrap(errs.CodeConnUnknown, msg+": "+myErr.Message, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.Wrap(errs.CodeTimeout, msg, err)
		}
		return errs.Wrap(errs.CodeConnErr, msg, err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) {
		return errs.Wrap(errs.CodeConnUnknown, msg, err)
	}
	return errs.Wrap(errs.CodeConnErr, msg, err)
}

func sqlState(e *gomysql.MySQLError) string {
	if e.SQLState[0] == 0 {
		return ""
	}
	return string(e.SQLState[:])
}
