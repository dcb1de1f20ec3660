package emp

import (
	"context"
	"math"

	"github.com/koustreak/empdb/internal/conn"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/errs"
)

// Store runs row operations on one handle. None of them commits: pending
// writes stay in the handle's transaction until the caller commits or
// rolls back. A write with no transaction active starts one.
type Store struct {
	h *conn.Handle
}

// New returns a Store on h.
func New(h *conn.Handle) *Store {
	return &Store{h: h}
}

func (s *Store) table() string             { return s.h.Table() }
func (s *Store) dialect() database.Dialect { return s.h.Dialect() }

// NextID returns MAX(empno)+1, or 1 on an empty table. It takes no lock:
// two callers can be handed the same value, and the second insert then
// fails on the key.
func (s *Store) NextID(ctx context.Context) (int32, error) {
	return s.nextID(ctx, s.dialect().NextKey(s.table(), ColEmpno))
}

func (s *Store) nextID(ctx context.Context, q string) (int32, error) {
	var next int64
	st := s.h.QueryRow(ctx, "next id", q, nil, &next)
	if err := st.StrictErr("next id"); err != nil {
		return 0, err
	}
	return keyOf("next id", next)
}

// keyOf narrows a key read from the database to the 32-bit key range.
func keyOf(step string, v int64) (int32, error) {
	if v < 1 || v > math.MaxInt32 {
		return 0, errs.Newf(errs.CodeErr, "%s: %d is outside the key range", step, v)
	}
	return int32(v), nil
}

// CreateAutoID computes the next id without locking and inserts r under it.
func (s *Store) CreateAutoID(ctx context.Context, r Row) (int32, error) {
	if err := checkRow(r); err != nil {
		return 0, err
	}
	if err := s.h.EnsureTx(ctx); err != nil {
		return 0, err
	}
	id, err := s.NextID(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.insert(ctx, r, id); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateWithID inserts r under the caller's id. A key that already exists
// is a generic CodeErr.
func (s *Store) CreateWithID(ctx context.Context, r Row, id int32) error {
	if err := checkRow(r); err != nil {
		return err
	}
	if err := s.h.EnsureTx(ctx); err != nil {
		return err
	}
	return s.insert(ctx, r, id)
}

// BatchCreateAutoID runs CreateAutoID for each row in order and stops at
// the first failure. It returns how many rows were inserted; those rows
// stay pending, and deciding whether to roll them back is the caller's.
func (s *Store) BatchCreateAutoID(ctx context.Context, rows []Row) (int, error) {
	for i, r := range rows {
		if _, err := s.CreateAutoID(ctx, r); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}

// CreateWithLock inserts r under the next id while holding an exclusive,
// non-waiting lock on the table. It joins the active transaction or starts
// one, and does not commit; the lock is held until the caller ends the
// transaction.
//
// If the lock is not granted it returns CodeLockTableFailed and issues no
// rollback, because nothing was written. Retrying is the caller's job; on
// Postgres the failed lock aborts the transaction, so roll back first. A
// failure after the lock was granted rolls the transaction back and
// returns CodeTxRollback.
func (s *Store) CreateWithLock(ctx context.Context, r Row) (int32, error) {
	if err := checkRow(r); err != nil {
		return 0, err
	}
	if err := s.h.EnsureTx(ctx); err != nil {
		return 0, err
	}

	if err := s.lockTable(ctx); err != nil {
		return 0, err
	}

	id, err := s.nextID(ctx, s.dialect().NextKeyLocked(s.table(), ColEmpno))
	if err == nil {
		err = s.insert(ctx, r, id)
	}
	if err != nil {
		if errs.IsConnectionState(err) {
			return 0, err
		}
		if rbErr := s.h.Rollback(ctx); rbErr != nil {
			s.h.Logger().ErrorWith("rollback after failed create failed", rbErr, nil)
		}
		return 0, errs.Wrap(errs.CodeTxRollback, "create with lock: rolled back", err)
	}
	return id, nil
}

// lockTable takes the table lock without waiting. Any refusal is
// CodeLockTableFailed unless the connection itself failed.
func (s *Store) lockTable(ctx context.Context) error {
	lock := s.dialect().LockTable(s.table(), ColEmpno)

	var err error
	granted := int64(1)
	if lock.ReportsGrant {
		err = s.h.QueryRow(ctx, "lock table", lock.Query, nil, &granted).StrictErr("lock table")
	} else {
		err = s.h.Exec(ctx, "lock table", lock.Query).Err("lock table")
	}
	if err != nil {
		if errs.IsConnectionState(err) || errs.IsLockTableFailed(err) {
			return err
		}
		return errs.Wrap(errs.CodeLockTableFailed, "lock table: not acquired", err)
	}
	if granted != 1 {
		return errs.New(errs.CodeLockTableFailed, "lock table: held by another session")
	}
	return nil
}

// GetByID reads the row with key id. A missing row is found == false with
// a nil error.
func (s *Store) GetByID(ctx context.Context, id int32) (Row, bool, error) {
	q, args, err := database.Select(s.table(), s.dialect()).
		Columns(ColEmpno, ColEname, ColSalary).
		Where(ColEmpno, "=", id).
		Build()
	if err != nil {
		return Row{}, false, err
	}

	var f fetched
	st := s.h.QueryRow(ctx, "get by id", q, args, f.dest()...)
	if st.EndOfData() {
		return Row{}, false, nil
	}
	if err := st.Err("get by id"); err != nil {
		return Row{}, false, err
	}
	r, cut, err := f.row()
	if err != nil {
		return Row{}, false, err
	}
	if err := s.onTruncation(cut, r); err != nil {
		return Row{}, false, err
	}
	return r, true, nil
}

// Update stores r's salary and name on the row with key r.Empno and
// returns the number of rows changed. Zero rows is not an error.
func (s *Store) Update(ctx context.Context, r Row) (int64, error) {
	if err := checkRow(r); err != nil {
		return 0, err
	}
	q, args, err := database.Update(s.table(), s.dialect()).
		Set(ColEname, r.nameArg()).
		Set(ColSalary, r.Salary).
		Where(ColEmpno, "=", r.Empno).
		Build()
	if err != nil {
		return 0, err
	}
	return s.write(ctx, "update", q, args)
}

// Delete removes the row with key id and returns the number of rows
// removed. Zero rows is not an error.
func (s *Store) Delete(ctx context.Context, id int32) (int64, error) {
	q, args, err := database.Delete(s.table(), s.dialect()).
		Where(ColEmpno, "=", id).
		Build()
	if err != nil {
		return 0, err
	}
	return s.write(ctx, "delete", q, args)
}

func (s *Store) insert(ctx context.Context, r Row, id int32) error {
	q, args, err := database.Insert(s.table(), s.dialect()).
		Value(ColEmpno, id).
		Value(ColEname, r.nameArg()).
		Value(ColSalary, r.Salary).
		Build()
	if err != nil {
		return err
	}
	_, err = s.write(ctx, "insert", q, args)
	return err
}

func (s *Store) write(ctx context.Context, step, q string, args []any) (int64, error) {
	if err := s.h.EnsureTx(ctx); err != nil {
		return 0, err
	}
	st := s.h.Exec(ctx, step, q, args...)
	if err := st.Err(step); err != nil {
		return 0, err
	}
	return st.RowCount(), nil
}

// checkRow rejects a name that would not fit the column.
func checkRow(r Row) error {
	if !r.EnameNull && len(r.Ename) > EnameMax {
		return errs.Newf(errs.CodeErr, "ename is %d bytes, at most %d fit", len(r.Ename), EnameMax)
	}
	return nil
}
