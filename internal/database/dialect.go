package database

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Dialect controls placeholder style, identifier quoting and the DDL
// capabilities the schema compiler is allowed to use.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and backtick identifiers.
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

// Placeholder returns the parameter placeholder for the idx-th argument (1-based).
func (d Dialect) Placeholder(idx int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(idx)
	}
	return "?"
}

// QuoteIdent wraps a SQL identifier so reserved words and mixed-case names are safe.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral renders v as an escaped SQL literal. It is only used for DDL
// text (DEFAULT, COMMENT, enum lists); data values are always bound.
//
// Numbers are quoted as text, booleans become '1'/'0', arrays and objects
// are JSON-encoded first and nil becomes NULL.
func (d Dialect) QuoteLiteral(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		s = x
	case bool:
		if x {
			s = "1"
		} else {
			s = "0"
		}
	case json.Number:
		s = x.String()
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		s = x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			s = fmt.Sprint(x)
		} else {
			s = string(b)
		}
	}
	if d == DialectMySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// AutoIncrement is the column clause that makes the id column self-assigning.
func (d Dialect) AutoIncrement() string {
	switch d {
	case DialectMySQL:
		return "AUTO_INCREMENT"
	case DialectSQLite:
		return "AUTOINCREMENT"
	default:
		return "GENERATED BY DEFAULT AS IDENTITY"
	}
}

// NativeEnum reports whether ENUM ('a', 'b') is a valid column type.
// Other dialects get a TEXT column with a CHECK constraint.
func (d Dialect) NativeEnum() bool {
	return d == DialectMySQL
}

// InlineComments reports whether COMMENT clauses may follow column and table definitions.
func (d Dialect) InlineComments() bool {
	return d == DialectMySQL
}

// CommentStatements reports whether comments are attached with COMMENT ON statements.
func (d Dialect) CommentStatements() bool {
	return d == DialectPostgres
}

// InlineIndex reports whether INDEX (col) may appear inside CREATE TABLE.
func (d Dialect) InlineIndex() bool {
	return d == DialectMySQL
}

// ReturningID reports whether inserts read the new id through RETURNING
// instead of the driver's last-insert-id.
func (d Dialect) ReturningID() bool {
	return d == DialectPostgres
}
