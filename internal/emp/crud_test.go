package emp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koustreak/empdb/internal/conn"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/database/dbtest"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeStore(t *testing.T) (*Store, *dbtest.Session) {
	t.Helper()
	return newFakeStoreWith(t, database.DialectPostgres)
}

func newFakeStoreWith(t *testing.T, d database.Dialect) (*Store, *dbtest.Session) {
	t.Helper()
	fake := dbtest.New(d)
	h, err := conn.New(database.DefaultConfig(), conn.WithOpener(fake.Opener()))
	require.NoError(t, err)
	require.NoError(t, h.Open(context.Background()))
	return New(h), fake
}

func TestCreateAutoID_FreshTable(t *testing.T) {
	ctx := context.Background()
	s, h := newSQLiteStore(t)

	id, err := s.CreateAutoID(ctx, Row{Salary: 1000, Ename: "First"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)
	assert.True(t, h.InTx(), "the insert stays pending")

	id, err = s.CreateAutoID(ctx, Row{Salary: 2000, Ename: "Second"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)

	require.NoError(t, h.Commit(ctx))
	assert.Equal(t, int64(2), countRows(t, h))
}

func TestCreateAutoID_NoCommit(t *testing.T) {
	ctx := context.Background()
	s, h := newSQLiteStore(t)

	_, err := s.CreateAutoID(ctx, Row{Salary: 1, Ename: "Temp"})
	require.NoError(t, err)
	require.NoError(t, h.Rollback(ctx))
	assert.Equal(t, int64(0), countRows(t, h))
}

func TestNextID(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t, twoRows()...)

	id, err := s.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(21), id)

	again, err := s.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again, "next id takes no reservation")
}

func TestCreateWithID_Collision(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t, twoRows()...)

	err := s.CreateWithID(ctx, Row{Salary: 5, Ename: "Dup"}, 10)
	assert.Equal(t, errs.CodeErr, errs.CodeOf(err))
}

func TestCreate_RejectsLongName(t *testing.T) {
	ctx := context.Background()
	s, fake := newFakeStore(t)

	_, err := s.CreateAutoID(ctx, Row{Ename: strings.Repeat("x", EnameMax+1)})
	assert.Equal(t, errs.CodeErr, errs.CodeOf(err))
	assert.Empty(t, fake.Statements())

	fake.Returns("COALESCE", []any{int64(1)})
	_, err = s.CreateAutoID(ctx, Row{Ename: strings.Repeat("x", EnameMax)})
	assert.NoError(t, err)
}

func TestBatchCreateAutoID(t *testing.T) {
	ctx := context.Background()
	s, h := newSQLiteStore(t)

	n, err := s.BatchCreateAutoID(ctx, []Row{
		{Salary: 1, Ename: "One"},
		{Salary: 2, Ename: "Two"},
		{Salary: 3, Ename: strings.Repeat("x", EnameMax+1)},
		{Salary: 4, Ename: "Four"},
	})
	assert.Error(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, h.InTx())
	assert.Equal(t, int64(2), countRows(t, h), "earlier rows stay pending")

	require.NoError(t, h.Rollback(ctx))
	assert.Equal(t, int64(0), countRows(t, h))

	n, err = s.BatchCreateAutoID(ctx, []Row{{Salary: 1, Ename: "A"}, {Salary: 2, Ename: "B"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, h.Commit(ctx))

	all, err := s.FetchAll(ctx, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Row{{Empno: 1, Salary: 1, Ename: "A"}, {Empno: 2, Salary: 2, Ename: "B"}}, all)
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t, twoRows()...)

	r, found, err := s.GetByID(ctx, 20)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, twoRows()[1], r)

	r, found, err = s.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Row{}, r)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s, h := newSQLiteStore(t, twoRows()...)

	n, err := s.Update(ctx, Row{Empno: 10, Salary: 1500, Ename: "A2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Update(ctx, Row{Empno: 99, Salary: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "no matching row is a zero count, not an error")

	n, err = s.Update(ctx, Row{Empno: 20, Salary: 2000, EnameNull: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Delete(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, h.Commit(ctx))

	r, _, err := s.GetByID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, Row{Empno: 10, Salary: 1500, Ename: "A2"}, r)

	r, _, err = s.GetByID(ctx, 20)
	require.NoError(t, err)
	assert.True(t, r.EnameNull)

	n, err = s.Delete(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, h.Commit(ctx))
	assert.Equal(t, int64(1), countRows(t, h))
}

func TestCreateWithLock(t *testing.T) {
	ctx := context.Background()

	t.Run("lock refused", func(t *testing.T) {
		s, fake := newFakeStore(t)
		fake.FailOn("LOCK TABLE", diag.Failure(errs.CodeLockTableFailed, diag.CodeGeneric, "55P03", "could not obtain lock", nil))

		_, err := s.CreateWithLock(ctx, Row{Salary: 15000, Ename: "Whitney"})
		assert.True(t, errs.IsLockTableFailed(err))
		assert.Equal(t, []string{
			"BEGIN READ WRITE",
			`LOCK TABLE "emp" IN EXCLUSIVE MODE NOWAIT`,
		}, fake.Statements())
	})

	t.Run("insert fails after lock", func(t *testing.T) {
		s, fake := newFakeStore(t)
		fake.Returns("COALESCE", []any{int64(8)})
		fake.FailOn("INSERT", diag.Failure(errs.CodeErr, diag.CodeGeneric, "23505", "duplicate key", nil))

		_, err := s.CreateWithLock(ctx, Row{Salary: 15000, Ename: "Whitney"})
		assert.True(t, errs.IsTxRollback(err))
		stmts := fake.Statements()
		assert.Equal(t, "ROLLBACK", stmts[len(stmts)-1])
		assert.False(t, s.h.InTx())
	})

	t.Run("success leaves commit to the caller", func(t *testing.T) {
		s, fake := newFakeStore(t)
		fake.Returns("COALESCE", []any{int64(8)})

		id, err := s.CreateWithLock(ctx, Row{Salary: 17000, Ename: "Sarah"})
		require.NoError(t, err)
		assert.Equal(t, int32(8), id)
		assert.True(t, s.h.InTx())
		assert.False(t, fake.Sent("COMMIT"))
	})
}

func TestCreateWithLock_MySQLNamedLock(t *testing.T) {
	ctx := context.Background()

	t.Run("lock held elsewhere", func(t *testing.T) {
		s, fake := newFakeStoreWith(t, database.DialectMySQL)
		fake.Returns("GET_LOCK", []any{0})

		_, err := s.CreateWithLock(ctx, Row{Salary: 15000, Ename: "Whitney"})
		assert.True(t, errs.IsLockTableFailed(err))
		assert.False(t, fake.Sent("MAX("), "no key is computed without the lock")
		assert.False(t, fake.Sent("INSERT"))
		assert.False(t, fake.Sent("ROLLBACK"))
	})

	t.Run("no answer", func(t *testing.T) {
		s, _ := newFakeStoreWith(t, database.DialectMySQL)

		_, err := s.CreateWithLock(ctx, Row{Salary: 15000, Ename: "Whitney"})
		assert.True(t, errs.IsLockTableFailed(err))
	})

	t.Run("granted", func(t *testing.T) {
		s, fake := newFakeStoreWith(t, database.DialectMySQL)
		fake.Returns("GET_LOCK", []any{1})
		fake.Returns("MAX(", []any{int64(3)})

		id, err := s.CreateWithLock(ctx, Row{Salary: 17000, Ename: "Sarah"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), id)
		assert.True(t, fake.Sent("FOR UPDATE"), "the key is read past the snapshot")

		require.NoError(t, s.h.Commit(ctx))
		stmts := fake.Statements()
		assert.Equal(t, []string{"COMMIT", "DO RELEASE_ALL_LOCKS()"}, stmts[len(stmts)-2:])
	})
}

func TestCreateWithLock_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "emp.db")
	h1 := openSQLite(t, path, database.TruncationLog)
	h2 := openSQLite(t, path, database.TruncationLog)
	require.True(t, h1.Exec(ctx, "create", createTable).OK())

	s1, s2 := New(h1), New(h2)

	id, err := s1.CreateWithLock(ctx, Row{Salary: 15000, Ename: "Whitney"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	_, err = s2.CreateWithLock(ctx, Row{Salary: 17000, Ename: "Sarah"})
	assert.True(t, errs.IsLockTableFailed(err))

	require.NoError(t, h2.Rollback(ctx))
	require.NoError(t, h1.Commit(ctx))

	id, err = s2.CreateWithLock(ctx, Row{Salary: 17000, Ename: "Sarah"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)
	require.NoError(t, h2.Commit(ctx))

	t.Run("failure after lock leaves no row", func(t *testing.T) {
		_, err := s1.CreateWithLock(ctx, Row{Salary: -1, Ename: "Negative"})
		assert.True(t, errs.IsTxRollback(err))
		assert.False(t, h1.InTx())
		assert.Equal(t, int64(2), countRows(t, h1))
	})
}
