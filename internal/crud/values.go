package crud

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/koustreak/schemasql/internal/compiler"
	"github.com/koustreak/schemasql/internal/errs"
)

// normalize turns arbitrary Go values into plain JSON data so the validator
// and the coercions below only see nil, bool, float64, string, []any and
// map[string]any.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, bool, float64, string:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// encode stores an array or object value as JSON text.
func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// bindValue converts a validated value to the Go type bound for col.
func bindValue(col *compiler.ColumnDefinition, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.SQLType {
	case compiler.TypeInteger:
		return toInt64(v)
	case compiler.TypeDecimal:
		return toFloat64(v)
	case compiler.TypeBoolean:
		return toBool(v)
	default:
		return toText(v), nil
	}
}

// readValue converts a scanned value back to the column's Go type.
// Drivers differ: MySQL hands DECIMAL back as text, pgx as pgtype.Numeric,
// SQLite stores BOOLEAN as an integer.
func readValue(col *compiler.ColumnDefinition, v any) any {
	if v == nil {
		return nil
	}
	if dv, ok := v.(driver.Valuer); ok {
		if inner, err := dv.Value(); err == nil {
			v = inner
		}
		if v == nil {
			return nil
		}
	}
	var (
		out any
		err error
	)
	switch col.SQLType {
	case compiler.TypeInteger:
		out, err = toInt64(v)
	case compiler.TypeDecimal:
		out, err = toFloat64(v)
	case compiler.TypeBoolean:
		out, err = toBool(v)
	default:
		return v
	}
	if err != nil {
		return v
	}
	return out
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errs.Newf(errs.ErrKindInvalidInput, "%v is not an integer", x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, errs.Newf(errs.ErrKindInvalidInput, "%q is not an integer", x)
		}
		return n, nil
	case []byte:
		return toInt64(string(x))
	default:
		return 0, errs.Newf(errs.ErrKindInvalidInput, "%v (%T) is not an integer", v, v)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, errs.Newf(errs.ErrKindInvalidInput, "%q is not a number", x)
		}
		return f, nil
	case []byte:
		return toFloat64(string(x))
	default:
		return 0, errs.Newf(errs.ErrKindInvalidInput, "%v (%T) is not a number", v, v)
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, errs.Newf(errs.ErrKindInvalidInput, "%q is not a boolean", x)
		}
		return b, nil
	case []byte:
		return toBool(string(x))
	default:
		return false, errs.Newf(errs.ErrKindInvalidInput, "%v (%T) is not a boolean", v, v)
	}
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
