// Package emp implements the row operations and the fetch engine for the
// employee table: one row shape, a 32-bit key, a salary and a bounded,
// nullable name.
package emp

import (
	"math"

	"github.com/koustreak/empdb/internal/bounded"
	"github.com/koustreak/empdb/internal/errs"
)

// EnameMax is the byte capacity of the name column, terminator excluded.
const EnameMax = 50

// Column names.
const (
	ColEmpno  = "empno"
	ColEname  = "ename"
	ColSalary = "sal"
)

// Row is one employee record. Ename is meaningful only when EnameNull is
// false; check the flag before reading the text.
type Row struct {
	Empno     int32   `json:"empno"`
	Salary    float64 `json:"salary"`
	Ename     string  `json:"ename,omitempty"`
	EnameNull bool    `json:"ename_null"`
}

// Indicator is the per-column null indicator a fetch fills in before the
// row's null flag is derived from it.
type Indicator int16

const (
	IndicatorNull    Indicator = -1
	IndicatorPresent Indicator = 0
	// A positive indicator is the original byte length of a value that was
	// cut to fit.
)

// indicators is the companion record of a fetched row.
type indicators struct {
	ename Indicator
}

// fetched holds the scan destinations for one row.
type fetched struct {
	empno  int64
	salary float64
	ename  *string
	ind    indicators
}

func (f *fetched) dest() []any {
	return []any{&f.empno, &f.ename, &f.salary}
}

// row converts scanned values into a Row, cutting the name to EnameMax.
// truncated reports whether the name was cut. A key outside the 32-bit
// range is CodeErr.
func (f *fetched) row() (r Row, truncated bool, err error) {
	if f.empno < math.MinInt32 || f.empno > math.MaxInt32 {
		return Row{}, false, errs.Newf(errs.CodeErr, "empno %d does not fit a 32-bit key", f.empno)
	}
	r = Row{Empno: int32(f.empno), Salary: f.salary}
	if f.ename == nil {
		f.ind.ename = IndicatorNull
	} else {
		kept, res := bounded.String(*f.ename, EnameMax)
		r.Ename = kept
		f.ind.ename = IndicatorPresent
		if res.Truncated {
			f.ind.ename = Indicator(min(res.SourceLen, math.MaxInt16))
		}
	}
	r.EnameNull = f.ind.ename == IndicatorNull
	return r, f.ind.ename > 0, nil
}

// nameArg is the bind value for r's name column.
func (r Row) nameArg() any {
	if r.EnameNull {
		return nil
	}
	return r.Ename
}
