package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, path string) database.Session {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.Driver = database.DriverSQLite
	cfg.Target = path

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSession_ExecAndQueryRow(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, filepath.Join(t.TempDir(), "emp.db"))

	assert.Equal(t, database.DialectSQLite, s.Dialect())
	assert.True(t, s.Alive())

	require.True(t, s.Exec(ctx, `CREATE TABLE emp (empno INTEGER PRIMARY KEY, ename TEXT, sal REAL)`).OK())
	st := s.Exec(ctx, `INSERT INTO emp (empno, ename, sal) VALUES (?, ?, ?), (?, ?, ?)`, 1, "Adams", 1100.0, 2, "Blake", 2850.0)
	require.True(t, st.OK())
	assert.Equal(t, int64(2), st.RowCount())

	var name string
	st = s.QueryRow(ctx, `SELECT ename FROM emp WHERE empno = ?`, []any{2}, &name)
	require.True(t, st.OKStrict())
	assert.Equal(t, "Blake", name)

	st = s.QueryRow(ctx, `SELECT ename FROM emp WHERE empno = ?`, []any{99}, &name)
	assert.True(t, st.OK())
	assert.True(t, st.EndOfData())

	st = s.Exec(ctx, `SELECT * FROM missing`)
	assert.False(t, st.OK())
	assert.Equal(t, errs.CodeErr, st.Class)
}

func TestSession_CursorBatches(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, filepath.Join(t.TempDir(), "emp.db"))

	require.True(t, s.Exec(ctx, `CREATE TABLE emp (empno INTEGER PRIMARY KEY)`).OK())
	require.True(t, s.Exec(ctx, `INSERT INTO emp (empno) VALUES (1), (2), (3)`).OK())

	cur, st := s.OpenCursor(ctx, `SELECT empno FROM emp ORDER BY empno`)
	require.True(t, st.OK())

	var got []int64
	sink := func(row database.Scanner) (bool, error) {
		var n int64
		if err := row.Scan(&n); err != nil {
			return false, err
		}
		got = append(got, n)
		return false, nil
	}

	st = cur.Fetch(ctx, 2, sink)
	assert.True(t, st.OKStrict())
	assert.Equal(t, int64(2), st.RowCount())

	st = cur.Fetch(ctx, 2, sink)
	assert.True(t, st.EndOfData())
	assert.Equal(t, int64(1), st.RowCount())

	st = cur.Fetch(ctx, 2, sink)
	assert.True(t, st.EndOfData())
	assert.Equal(t, int64(0), st.RowCount())

	assert.True(t, cur.Close(ctx).OK())
	assert.True(t, cur.Close(ctx).OK())
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestSession_LockContention(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "emp.db")
	a := openTemp(t, path)
	b := openTemp(t, path)

	require.True(t, a.Exec(ctx, `CREATE TABLE emp (empno INTEGER PRIMARY KEY)`).OK())

	lock := database.DialectSQLite.LockTable("emp", "empno").Query
	require.True(t, a.Exec(ctx, "BEGIN DEFERRED").OK())
	require.True(t, a.Exec(ctx, lock).OK())

	require.True(t, b.Exec(ctx, "BEGIN DEFERRED").OK())
	st := b.Exec(ctx, lock)
	assert.False(t, st.OK())
	assert.True(t, errs.IsLockTableFailed(st.Err("lock table")))
	require.True(t, b.Exec(ctx, database.StmtRollback).OK())

	require.True(t, a.Exec(ctx, database.StmtCommit).OK())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "emp.db"))
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	assert.False(t, s.Alive())
}

func TestClassifyCode(t *testing.T) {
	assert.Equal(t, errs.CodeLockTableFailed, classifyCode(5, "database is locked"))
	assert.Equal(t, errs.CodeLockTableFailed, classifyCode(6, "database table is locked"))
	assert.Equal(t, errs.CodeTimeout, classifyCode(9, "interrupted"))
	assert.Equal(t, errs.CodeTxCreateErr, classifyCode(1, "cannot start a transaction within a transaction"))
	assert.Equal(t, errs.CodeErr, classifyCode(1, "no such table: emp"))
	assert.Equal(t, errs.CodeErr, classifyCode(19, "UNIQUE constraint failed: emp.empno"))
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, "/tmp/emp.db?_pragma=busy_timeout(0)", buildDSN("/tmp/emp.db"))
	assert.Equal(t, "file:emp.db?mode=rwc&_pragma=busy_timeout(0)", buildDSN("file:emp.db?mode=rwc"))
	assert.Equal(t, "/data/emp.db?_pragma=busy_timeout(0)", buildDSN("sqlite:///data/emp.db"))
}
