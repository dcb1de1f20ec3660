package database

import "github.com/koustreak/empdb/internal/diag"

// RowIter is the row iteration surface shared by pgx.Rows and *sql.Rows.
type RowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Batch is the result of draining one batch from a RowIter.
type Batch struct {
	Fetched   int
	Exhausted bool // the iterator ran dry
	Truncated bool // the sink cut at least one value
}

// Drain moves up to n rows from it into sink. It stops early, with
// Exhausted set, when the iterator runs dry.
func Drain(it RowIter, n int, sink Sink) (Batch, error) {
	var b Batch
	for b.Fetched < n {
		if !it.Next() {
			b.Exhausted = true
			return b, it.Err()
		}
		cut, err := sink(it)
		if err != nil {
			return b, err
		}
		b.Truncated = b.Truncated || cut
		b.Fetched++
	}
	return b, nil
}

// Status converts a drained batch into the status a Fetch reports.
func (b Batch) Status() diag.Status {
	st := diag.Success(int64(b.Fetched))
	if b.Exhausted {
		st = diag.EndOfData(int64(b.Fetched))
	}
	if b.Truncated {
		st = st.WithTruncation()
	}
	return st
}
