package emp

import (
	"context"

	"github.com/koustreak/empdb/internal/conn"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/diag"
	"github.com/koustreak/empdb/internal/errs"
)

const (
	// DefaultBatch is the rows per round trip when the caller gives none.
	DefaultBatch = 128

	// DefaultReserve is the initial capacity FetchAll reserves when the
	// caller's hint is not positive.
	DefaultReserve = 64

	// MaxReserve caps the initial reservation so a wild hint cannot
	// allocate ahead of the data.
	MaxReserve = 1 << 16
)

// selectAll reads every row in the engine's default order. There is no
// ORDER BY, so the order is whatever the engine returns and is not stable.
func (s *Store) selectAll() (string, error) {
	q, _, err := database.Select(s.table(), s.dialect()).
		Columns(ColEmpno, ColEname, ColSalary).
		Build()
	return q, err
}

// FetchBounded fills dst with at most len(dst) rows, pulling batch rows per
// round trip, and returns how many it wrote. Rows beyond len(dst) are left
// unread and the cursor is closed; the call cannot be resumed. A batch of
// zero or less means DefaultBatch.
func (s *Store) FetchBounded(ctx context.Context, dst []Row, batch int) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if batch <= 0 {
		batch = DefaultBatch
	}

	count := 0
	err := s.withCursor(ctx, "fetch bounded", func(cur *conn.Cursor) error {
		for count < len(dst) {
			n := min(batch, len(dst)-count)
			st := cur.Fetch(ctx, n, s.sink(func(r Row) {
				dst[count] = r
				count++
			}))
			if err := s.checkBatch("fetch bounded", st); err != nil {
				return err
			}
			if st.EndOfData() {
				return nil
			}
		}
		return nil
	})
	return count, err
}

// FetchAll drains the result set into a slice it grows as needed. The hint
// only sizes the first allocation; the result always holds every row. On
// failure the rows read so far are returned with the error.
func (s *Store) FetchAll(ctx context.Context, reserveHint int) ([]Row, error) {
	reserve := reserveHint
	if reserve <= 0 {
		reserve = DefaultReserve
	}
	reserve = min(reserve, MaxReserve)

	rows := make([]Row, 0, reserve)
	err := s.withCursor(ctx, "fetch all", func(cur *conn.Cursor) error {
		for {
			st := cur.Fetch(ctx, DefaultBatch, s.sink(func(r Row) {
				rows = append(rows, r)
			}))
			if err := s.checkBatch("fetch all", st); err != nil {
				return err
			}
			if st.EndOfData() {
				return nil
			}
		}
	})
	return rows, err
}

// withCursor opens the full-table cursor, hands it to fn and closes it on
// every path.
func (s *Store) withCursor(ctx context.Context, step string, fn func(*conn.Cursor) error) (err error) {
	q, err := s.selectAll()
	if err != nil {
		return err
	}
	cur, st := s.h.OpenCursor(ctx, step, q)
	if err := st.Err(step); err != nil {
		return err
	}
	defer func() {
		if cerr := cur.Close(ctx).Err(step + " close"); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(cur)
}

// checkBatch applies the permissive check to a fetch. End of data passes;
// a truncation warning was already handled row by row in the sink.
func (s *Store) checkBatch(step string, st diag.Status) error {
	if st.Truncated() {
		s.h.Logger().With().
			Str("step", step).
			Int64("rows", st.RowCount()).
			Logger().
			Debug("batch carried a truncated value")
	}
	return st.Err(step)
}

// sink scans one row, maps its indicators onto the null flag and passes the
// row to put.
func (s *Store) sink(put func(Row)) database.Sink {
	return func(sc database.Scanner) (bool, error) {
		var f fetched
		if err := sc.Scan(f.dest()...); err != nil {
			return false, err
		}
		r, cut, err := f.row()
		if err != nil {
			return false, err
		}
		if err := s.onTruncation(cut, r); err != nil {
			return cut, err
		}
		put(r)
		return cut, nil
	}
}

// onTruncation applies the handle's truncation policy to a row whose name
// was or was not cut.
func (s *Store) onTruncation(cut bool, r Row) error {
	if !cut {
		return nil
	}
	switch s.h.Truncation() {
	case database.TruncationFail:
		return errs.Newf(errs.CodeErr, "ename of row %d exceeds %d bytes", r.Empno, EnameMax)
	case database.TruncationIgnore:
		return nil
	default:
		s.h.Logger().WarnWith("value truncated", map[string]interface{}{
			"column": ColEname,
			"empno":  r.Empno,
			"kept":   len(r.Ename),
		})
		return nil
	}
}
