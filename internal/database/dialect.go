package database

import (
	"fmt"
	"strings"
)

// Dialect controls placeholder style, identifier quoting and the
// transaction statements each engine understands.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and backtick quoting.
	DialectMySQL

	// DialectSQLite uses ? placeholders.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}

// Placeholder returns the correct parameter placeholder for the dialect.
// Postgres: $1, $2, …   MySQL, SQLite: ? (index is ignored)
func (d Dialect) Placeholder(idx int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

// QuoteIdent quotes a SQL identifier. MySQL without ANSI_QUOTES reads
// double quotes as a string literal, so it gets backticks.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// BeginTx returns the statements that start a unit of work with opts.
// SQLite has one isolation level (serializable) and no read-only
// transactions, so it approximates READ ONLY with query_only.
func (d Dialect) BeginTx(opts TxOptions) []string {
	switch d {
	case DialectMySQL:
		var stmts []string
		if opts.Isolation != IsolationDefault {
			stmts = append(stmts, "SET TRANSACTION ISOLATION LEVEL "+opts.Isolation.String())
		}
		return append(stmts, "START TRANSACTION "+opts.Access.String())
	case DialectSQLite:
		stmts := []string{"BEGIN DEFERRED"}
		if opts.Access == ReadOnly {
			stmts = append(stmts, "PRAGMA query_only = ON")
		}
		return stmts
	default:
		if opts.Isolation != IsolationDefault {
			return []string{fmt.Sprintf("BEGIN ISOLATION LEVEL %s, %s", opts.Isolation, opts.Access)}
		}
		return []string{"BEGIN " + opts.Access.String()}
	}
}

// EndTx returns the statements to run after a unit of work started with
// opts has committed or rolled back. MySQL user-level locks outlive the
// transaction, so every lock the session took is released here.
func (d Dialect) EndTx(opts TxOptions) []string {
	switch {
	case d == DialectMySQL:
		return []string{StmtReleaseLocksMySQL}
	case d == DialectSQLite && opts.Access == ReadOnly:
		return []string{"PRAGMA query_only = OFF"}
	}
	return nil
}

// Savepoint and RollbackToSavepoint expect a name already validated and
// normalized with NormalizeIdentifier.
func (d Dialect) Savepoint(name string) string {
	return "SAVEPOINT " + d.QuoteIdent(name)
}

func (d Dialect) RollbackToSavepoint(name string) string {
	return "ROLLBACK TO SAVEPOINT " + d.QuoteIdent(name)
}

// TableLock is the statement that takes an exclusive, non-waiting lock on
// a table for the rest of the current transaction.
type TableLock struct {
	Query string

	// ReportsGrant marks a query returning 1 when the lock was granted and 0
	// when it was not. Otherwise Query is executed and a refusal is an
	// error.
	ReportsGrant bool
}

// StmtReleaseLocksMySQL drops the user-level locks a MySQL session holds.
const StmtReleaseLocksMySQL = "DO RELEASE_ALL_LOCKS()"

// LockTable returns the lock statement for table. MySQL's LOCK TABLES would
// commit the transaction, and locking reads take only gap locks on an empty
// table, so MySQL uses a named user-level lock per database and table,
// requested without waiting. SQLite takes its database-wide write lock on
// the first write, so a write that touches nothing is enough.
func (d Dialect) LockTable(table, keyColumn string) TableLock {
	t, k := d.QuoteIdent(table), d.QuoteIdent(keyColumn)
	switch d {
	case DialectMySQL:
		name := strings.ReplaceAll(table, "'", "''")
		return TableLock{
			Query:        fmt.Sprintf("SELECT IFNULL(GET_LOCK(CONCAT(DATABASE(), '.%s'), 0), 0)", name),
			ReportsGrant: true,
		}
	case DialectSQLite:
		return TableLock{Query: fmt.Sprintf("UPDATE %s SET %s = %s WHERE 1 = 0", t, k, k)}
	default:
		return TableLock{Query: fmt.Sprintf("LOCK TABLE %s IN EXCLUSIVE MODE NOWAIT", t)}
	}
}

// NextKey returns a query producing MAX(keyColumn)+1, or 1 on an empty table.
func (d Dialect) NextKey(table, keyColumn string) string {
	return fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", d.QuoteIdent(keyColumn), d.QuoteIdent(table))
}

// NextKeyLocked is NextKey for use under LockTable. On MySQL it is a
// locking read, which sees the latest committed rows rather than the
// transaction's snapshot.
func (d Dialect) NextKeyLocked(table, keyColumn string) string {
	if d == DialectMySQL {
		return d.NextKey(table, keyColumn) + " FOR UPDATE"
	}
	return d.NextKey(table, keyColumn)
}

// Commit and Rollback are the statements ending a unit of work.
const (
	StmtCommit   = "COMMIT"
	StmtRollback = "ROLLBACK"
)
