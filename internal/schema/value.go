// Package schema models JSON-Schema documents as ordered JSON values and
// resolves $ref links between them.
//
// Documents are parsed into Value rather than map[string]any because property
// declaration order decides column order and the order relation tables are
// created in.
package schema

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/koustreak/schemasql/internal/errs"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Member is one key of an object Value.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value that remembers object key order.
// The zero Value is JSON null.
type Value struct {
	kind    Kind
	boolean bool
	text    string // string contents, or the literal text of a number
	items   []Value
	members []Member
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number wraps the literal text of a JSON number, e.g. "12.50".
func Number(raw string) Value { return Value{kind: KindNumber, text: raw} }

// Int wraps n as a number.
func Int(n int64) Value { return Number(strconv.FormatInt(n, 10)) }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Array wraps items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value{}, items...)}
}

// Object builds an object from members. A repeated key keeps its first
// position and its last value.
func Object(members ...Member) Value {
	v := Value{kind: KindObject, members: make([]Member, 0, len(members))}
	for _, m := range members {
		v = v.With(m.Key, m.Value)
	}
	return v
}

// Parse decodes JSON text. Object key order is preserved.
func Parse(data []byte) (Value, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !gjson.ValidBytes(data) {
		return Value{}, errs.New(errs.ErrKindSchemaLoad, "invalid JSON")
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Value {
	v, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return v
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			v := Value{kind: KindArray, items: []Value{}}
			r.ForEach(func(_, item gjson.Result) bool {
				v.items = append(v.items, fromResult(item))
				return true
			})
			return v
		}
		v := Value{kind: KindObject, members: []Member{}}
		r.ForEach(func(key, item gjson.Result) bool {
			v = v.With(key.Str, fromResult(item))
			return true
		})
		return v
	default:
		return Null()
	}
}

// FromInterface converts decoded Go data (as produced by encoding/json) to a Value.
// Map keys are sorted because Go maps carry no order.
func FromInterface(x any) (Value, error) {
	b, err := json.Marshal(x)
	if err != nil {
		return Value{}, errs.Wrap(errs.ErrKindInvalidInput, "value is not JSON-encodable", err)
	}
	return Parse(b)
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsObject() bool    { return v.kind == KindObject }
func (v Value) IsArray() bool     { return v.kind == KindArray }
func (v Value) Items() []Value    { return v.items }
func (v Value) Members() []Member { return v.members }

// Len is the number of items or members; zero for scalars.
func (v Value) Len() int {
	if v.kind == KindArray {
		return len(v.items)
	}
	return len(v.members)
}

// Str returns the string contents, or "" for any other kind.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.text
}

// Truthy reports whether v is boolean true.
func (v Value) Truthy() bool {
	return v.kind == KindBool && v.boolean
}

// Int64 returns a number value as an integer; fractions are truncated.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if n, err := strconv.ParseInt(v.text, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// Get looks up key in an object.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Keys returns object keys in order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.members))
	for i, m := range v.members {
		keys[i] = m.Key
	}
	return keys
}

// With returns a copy of object v with key set to val. An existing key keeps
// its position; a new key is appended.
func (v Value) With(key string, val Value) Value {
	out := Value{kind: KindObject, members: make([]Member, len(v.members), len(v.members)+1)}
	copy(out.members, v.members)
	for i, m := range out.members {
		if m.Key == key {
			out.members[i].Value = val
			return out
		}
	}
	out.members = append(out.members, Member{Key: key, Value: val})
	return out
}

// Without returns a copy of object v without key.
func (v Value) Without(key string) Value {
	out := Value{kind: v.kind, members: make([]Member, 0, len(v.members))}
	for _, m := range v.members {
		if m.Key != key {
			out.members = append(out.members, m)
		}
	}
	return out
}

// Interface converts v to plain Go data: nil, bool, json.Number, string,
// []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		return json.Number(v.text)
	case KindString:
		return v.text
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.members))
		for _, m := range v.members {
			out[m.Key] = m.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes v with object keys in their original order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes JSON text into v, keeping key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String renders v as compact JSON.
func (v Value) String() string {
	b, _ := v.MarshalJSON()
	return string(b)
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		buf.WriteString(v.text)
	case KindString:
		b, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
