package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/schemasql/internal/errs"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type whereClause struct {
	column string
	op     string
	value  any
}

type orderClause struct {
	column string
	dir    SortDirection
}

type assignment struct {
	column string
	value  any
}

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string — always passed as args.
//
// Usage (Postgres):
//
//	sql, args, err := Select("person", DialectPostgres).
//	    Where("name", "=", "Ada").
//	    OrderBy("date", Desc).
//	    Limit(24).
//	    Offset(0).
//	    Build()
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	joins   []string
	where   []whereClause
	orderBy []orderClause
	limit   *int
	offset  *int
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// Qualified names ("t.col") are quoted part by part. If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Join adds an INNER JOIN of table on left = right (both column references).
func (b *SelectBuilder) Join(table, left, right string) *SelectBuilder {
	b.joins = append(b.joins, fmt.Sprintf(" JOIN %s ON %s = %s",
		b.dialect.QuoteIdent(table), b.ident(left), b.ident(right)))
	return b
}

// Where adds a WHERE condition. op must be one of the allowed comparison
// operators (=, !=, <, >, <=, >=, LIKE, ILIKE).
// Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
// Returns an error if any WHERE operator is not in the allowlist.
func (b *SelectBuilder) Build() (string, []any, error) {
	cols := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = b.ident(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteIdent(b.table))
	for _, j := range b.joins {
		sb.WriteString(j)
	}

	args, err := writeWhere(&sb, b.dialect, b.where, 1, b.ident)
	if err != nil {
		return "", nil, err
	}
	argIdx := len(args) + 1

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", b.ident(o.column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limit != nil {
		sb.WriteString(" LIMIT " + b.dialect.Placeholder(argIdx))
		args = append(args, *b.limit)
		argIdx++
	}

	if b.offset != nil {
		sb.WriteString(" OFFSET " + b.dialect.Placeholder(argIdx))
		args = append(args, *b.offset)
	}

	return sb.String(), args, nil
}

func (b *SelectBuilder) ident(name string) string {
	return quoteQualified(b.dialect, name)
}

// InsertBuilder constructs a parameterized INSERT.
type InsertBuilder struct {
	table           string
	dialect         Dialect
	values          []assignment
	ignoreConflicts bool
	returning       string
}

// Insert starts a new InsertBuilder for the given table and dialect.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

// Set adds a column value. Columns are emitted in call order.
func (b *InsertBuilder) Set(column string, value any) *InsertBuilder {
	b.values = append(b.values, assignment{column, value})
	return b
}

// IgnoreConflicts turns a duplicate-key insert into a no-op.
func (b *InsertBuilder) IgnoreConflicts() *InsertBuilder {
	b.ignoreConflicts = true
	return b
}

// Returning asks the dialects that need it to hand back column (usually "id").
// It is ignored for dialects that report the id through the driver.
func (b *InsertBuilder) Returning(column string) *InsertBuilder {
	b.returning = column
	return b
}

// Build produces the final SQL string and argument slice.
func (b *InsertBuilder) Build() (string, []any, error) {
	var sb strings.Builder

	switch {
	case b.ignoreConflicts && b.dialect == DialectMySQL:
		sb.WriteString("INSERT IGNORE INTO ")
	case b.ignoreConflicts && b.dialect == DialectSQLite:
		sb.WriteString("INSERT OR IGNORE INTO ")
	default:
		sb.WriteString("INSERT INTO ")
	}
	sb.WriteString(b.dialect.QuoteIdent(b.table))

	args := make([]any, 0, len(b.values))
	if len(b.values) == 0 {
		if b.dialect == DialectMySQL {
			sb.WriteString(" () VALUES ()")
		} else {
			sb.WriteString(" DEFAULT VALUES")
		}
	} else {
		cols := make([]string, len(b.values))
		marks := make([]string, len(b.values))
		for i, a := range b.values {
			cols[i] = b.dialect.QuoteIdent(a.column)
			marks[i] = b.dialect.Placeholder(i + 1)
			args = append(args, a.value)
		}
		sb.WriteString(" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")")
	}

	if b.ignoreConflicts && b.dialect == DialectPostgres {
		sb.WriteString(" ON CONFLICT DO NOTHING")
	}
	if b.returning != "" && b.dialect.ReturningID() {
		sb.WriteString(" RETURNING " + b.dialect.QuoteIdent(b.returning))
	}

	return sb.String(), args, nil
}

// UpdateBuilder constructs a parameterized UPDATE.
type UpdateBuilder struct {
	table   string
	dialect Dialect
	values  []assignment
	where   []whereClause
}

// Update starts a new UpdateBuilder for the given table and dialect.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d}
}

// Set adds a column assignment.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.values = append(b.values, assignment{column, value})
	return b
}

// Where adds a WHERE condition; see SelectBuilder.Where.
func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// Build produces the final SQL string and argument slice.
// An UPDATE without assignments or without a WHERE clause is rejected.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if len(b.values) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update without columns")
	}
	if len(b.where) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update without WHERE clause")
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.dialect.QuoteIdent(b.table))
	sb.WriteString(" SET ")

	args := make([]any, 0, len(b.values)+len(b.where))
	parts := make([]string, len(b.values))
	for i, a := range b.values {
		parts[i] = fmt.Sprintf("%s = %s", b.dialect.QuoteIdent(a.column), b.dialect.Placeholder(i+1))
		args = append(args, a.value)
	}
	sb.WriteString(strings.Join(parts, ", "))

	whereArgs, err := writeWhere(&sb, b.dialect, b.where, len(args)+1, b.dialect.QuoteIdent)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), append(args, whereArgs...), nil
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

// Where adds a WHERE condition; see SelectBuilder.Where.
func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// Build produces the final SQL string and argument slice.
// A DELETE without a WHERE clause is rejected.
func (b *DeleteBuilder) Build() (string, []any, error) {
	if len(b.where) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "delete without WHERE clause")
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.dialect.QuoteIdent(b.table))
	args, err := writeWhere(&sb, b.dialect, b.where, 1, b.dialect.QuoteIdent)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

// writeWhere appends " WHERE a = ? AND …" starting at placeholder index first.
func writeWhere(sb *strings.Builder, d Dialect, where []whereClause, first int, ident func(string) string) ([]any, error) {
	if len(where) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(where))
	parts := make([]string, 0, len(where))
	for i, w := range where {
		op := strings.ToUpper(w.op)
		if !validOps[op] {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported WHERE operator: %q", w.op)
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", ident(w.column), op, d.Placeholder(first+i)))
		args = append(args, w.value)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(parts, " AND "))
	return args, nil
}

// quoteQualified quotes "table.column" as two identifiers.
func quoteQualified(d Dialect, name string) string {
	if name == "*" {
		return name
	}
	if table, col, ok := strings.Cut(name, "."); ok {
		if col == "*" {
			return d.QuoteIdent(table) + ".*"
		}
		return d.QuoteIdent(table) + "." + d.QuoteIdent(col)
	}
	return d.QuoteIdent(name)
}
