package compiler

import (
	"strings"

	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/schema"
)

// SQL column types produced by MapType.
const (
	TypeText      = "TEXT"
	TypeDecimal   = "DECIMAL"
	TypeTimestamp = "TIMESTAMP"
	TypeInteger   = "INTEGER"
	TypeBoolean   = "BOOLEAN"
)

// MapType returns the column type for a property fragment. It never fails:
// anything it does not recognise is stored as text.
//
// An enum becomes ENUM ('a', 'b', …) on dialects that have one and TEXT
// elsewhere; see EnumCheck for the constraint that goes with it.
func MapType(frag schema.Value, d database.Dialect) string {
	if literals, ok := frag.Enum(); ok {
		if !d.NativeEnum() {
			return TypeText
		}
		return "ENUM (" + enumList(literals, d) + ")"
	}

	switch frag.Type() {
	case "number":
		return TypeDecimal
	case "date":
		return TypeTimestamp
	case "integer", "boolean":
		return strings.ToUpper(frag.Type())
	default:
		// array and object are stored as encoded text.
		return TypeText
	}
}

// EnumCheck returns the CHECK expression that restricts column to the
// fragment's enum on dialects without a native ENUM, or "".
func EnumCheck(column string, frag schema.Value, d database.Dialect) string {
	literals, ok := frag.Enum()
	if !ok || d.NativeEnum() {
		return ""
	}
	return d.QuoteIdent(column) + " IN (" + enumList(literals, d) + ")"
}

func enumList(literals []schema.Value, d database.Dialect) string {
	quoted := make([]string, len(literals))
	for i, lit := range literals {
		quoted[i] = literal(lit, d)
	}
	return strings.Join(quoted, ", ")
}

// literal escapes a schema value for DDL text. Arrays and objects keep their
// key order by being encoded from the ordered value.
func literal(v schema.Value, d database.Dialect) string {
	if v.IsArray() || v.IsObject() {
		return d.QuoteLiteral(v.String())
	}
	return d.QuoteLiteral(v.Interface())
}
