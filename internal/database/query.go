package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/empdb/internal/errs"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":  true,
	"!=": true,
	"<>": true,
	"<":  true,
	">":  true,
	"<=": true,
	">=": true,
}

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string; they are always passed as args.
//
// Usage (Postgres):
//
//	sql, args, err := Select("emp", DialectPostgres).
//	    Columns("empno", "sal", "ename").
//	    Where("empno", "=", 7839).
//	    Build()
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	where   []whereClause
}

type whereClause struct {
	column string
	op     string
	value  any
}

type assignment struct {
	column string
	value  any
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// Build produces the final SQL string and argument slice.
// Returns an error if any WHERE operator is not in the allowlist.
func (b *SelectBuilder) Build() (string, []any, error) {
	cols := "*"
	if len(b.columns) > 0 {
		cols = b.dialect.quoteList(b.columns)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteIdent(b.table))

	where, args, err := b.dialect.buildWhere(b.where, 1)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	return sb.String(), args, nil
}

// InsertBuilder constructs a parameterized single-row INSERT.
type InsertBuilder struct {
	table   string
	dialect Dialect
	values  []assignment
}

// Insert starts a new InsertBuilder for the given table and dialect.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

// Value adds a column and the value to store in it.
func (b *InsertBuilder) Value(column string, value any) *InsertBuilder {
	b.values = append(b.values, assignment{column, value})
	return b
}

// Build produces the final SQL string and argument slice.
func (b *InsertBuilder) Build() (string, []any, error) {
	if len(b.values) == 0 {
		return "", nil, errs.New(errs.CodeErr, "insert without values")
	}
	cols := make([]string, len(b.values))
	marks := make([]string, len(b.values))
	args := make([]any, len(b.values))
	for i, v := range b.values {
		cols[i] = v.column
		marks[i] = b.dialect.Placeholder(i + 1)
		args[i] = v.value
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.dialect.QuoteIdent(b.table), b.dialect.quoteList(cols), strings.Join(marks, ", "))
	return q, args, nil
}

// UpdateBuilder constructs a parameterized UPDATE.
type UpdateBuilder struct {
	table   string
	dialect Dialect
	set     []assignment
	where   []whereClause
}

// Update starts a new UpdateBuilder for the given table and dialect.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d}
}

// Set adds a column assignment.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.set = append(b.set, assignment{column, value})
	return b
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// Build produces the final SQL string and argument slice. An UPDATE without
// a WHERE clause is refused.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if len(b.set) == 0 {
		return "", nil, errs.New(errs.CodeErr, "update without assignments")
	}
	if len(b.where) == 0 {
		return "", nil, errs.New(errs.CodeErr, "update without where clause")
	}
	parts := make([]string, len(b.set))
	args := make([]any, 0, len(b.set)+len(b.where))
	for i, s := range b.set {
		parts[i] = fmt.Sprintf("%s = %s", b.dialect.QuoteIdent(s.column), b.dialect.Placeholder(i+1))
		args = append(args, s.value)
	}
	where, whereArgs, err := b.dialect.buildWhere(b.where, len(args)+1)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("UPDATE %s SET %s%s", b.dialect.QuoteIdent(b.table), strings.Join(parts, ", "), where)
	return q, append(args, whereArgs...), nil
}

// DeleteBuilder constructs a parameterized DELETE.
type DeleteBuilder struct {
	table   string
	dialect Dialect
	where   []whereClause
}

// Delete starts a new DeleteBuilder for the given table and dialect.
func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{table: table, dialect: d}
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// Build produces the final SQL string and argument slice. A DELETE without
// a WHERE clause is refused.
func (b *DeleteBuilder) Build() (string, []any, error) {
	if len(b.where) == 0 {
		return "", nil, errs.New(errs.CodeErr, "delete without where clause")
	}
	where, args, err := b.dialect.buildWhere(b.where, 1)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + b.dialect.QuoteIdent(b.table) + where, args, nil
}

// buildWhere renders the WHERE clause, numbering placeholders from first.
func (d Dialect) buildWhere(clauses []whereClause, first int) (string, []any, error) {
	if len(clauses) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(clauses))
	args := make([]any, 0, len(clauses))
	for i, w := range clauses {
		op := strings.ToUpper(w.op)
		if !validOps[op] {
			return "", nil, errs.Newf(errs.CodeErr, "unsupported WHERE operator: %q", w.op)
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", d.QuoteIdent(w.column), op, d.Placeholder(first+i)))
		args = append(args, w.value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (d Dialect) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
