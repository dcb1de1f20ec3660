package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/koustreak/empdb/internal/conn"
	"github.com/koustreak/empdb/internal/emp"
	"github.com/koustreak/empdb/internal/errs"
	"github.com/koustreak/empdb/internal/filestore"
)

// runner holds what the command steps share.
type runner struct {
	h      *conn.Handle
	store  *emp.Store
	stdout io.Writer
	stderr io.Writer
}

func (r *runner) fetchBounded(ctx context.Context, capacity, batch int) error {
	rows := make([]emp.Row, capacity)
	n, err := r.store.FetchBounded(ctx, rows, batch)
	if err != nil {
		return err
	}
	printRows(r.stdout, rows[:n])
	return nil
}

func (r *runner) fetchAll(ctx context.Context) ([]emp.Row, error) {
	rows, err := r.store.FetchAll(ctx, growableHint)
	if err != nil {
		return nil, err
	}
	printRows(r.stdout, rows)
	return rows, nil
}

// createWithLock creates row under the table lock and commits it. A failure
// is reported and rolled back; it does not stop the command.
func (r *runner) createWithLock(ctx context.Context, row emp.Row) {
	id, err := r.store.CreateWithLock(ctx, row)
	if err == nil {
		err = r.h.Commit(ctx)
	}
	if err != nil {
		if r.h.InTx() {
			_ = r.h.Rollback(ctx)
		}
		if errs.IsTxRollback(err) {
			fmt.Fprintf(r.stdout, "[Create] Err create new employee with name %s failed & rollback.\n", row.Ename)
			return
		}
		fmt.Fprintf(r.stdout, "[Create] Err create new employee with name %s error (%s).\n", row.Ename, errs.CodeOf(err))
		return
	}
	fmt.Fprintf(r.stdout, "[Create] Created new employee with name %s [%d].\n", row.Ename, id)
}

func (r *runner) export(ctx context.Context, e *filestore.Exporter, store filestore.Store, rows []emp.Row, ttl time.Duration) error {
	cfg := r.h.Config()
	info, err := e.Export(ctx, &filestore.Snapshot{
		Handle: r.h.ID().String(),
		Driver: string(cfg.Driver),
		Table:  cfg.Table,
		Count:  len(rows),
		Rows:   rows,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.stdout, "Exported %d record(s) to %s/%s\n", len(rows), info.Bucket, info.Key)

	if ttl > 0 {
		url, err := store.PresignGetURL(ctx, info.Bucket, info.Key, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.stdout, "Download: %s\n", url)
	}
	return nil
}

func printRows(w io.Writer, rows []emp.Row) {
	fmt.Fprintf(w, "%-6s  %-50s  %10s\n", "EMPNO", "ENAME", "SAL")
	fmt.Fprintf(w, "------  --------------------------------------------------  ----------\n")
	for _, r := range rows {
		name := r.Ename
		if r.EnameNull {
			name = "(null)"
		}
		fmt.Fprintf(w, "%-6d  %-50s  %10.2f\n", r.Empno, name, r.Salary)
	}
	fmt.Fprintf(w, "\n%d record(s)\n", len(rows))
}
