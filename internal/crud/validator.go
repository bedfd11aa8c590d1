package crud

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/koustreak/schemasql/internal/compiler"
)

// Validator checks the column values of a payload against the schema the
// table was compiled from. Values are plain JSON data: nil, bool, float64,
// string. Reference properties have already been split off and array or
// object values encoded to text.
type Validator interface {
	Validate(def *compiler.TableDefinition, data map[string]any) []Violation
}

// JSONSchemaValidator validates each column against a JSON Schema derived
// from its property fragment. Only type, enum and requiredness are checked.
type JSONSchemaValidator struct {
	mu       sync.Mutex
	resolved map[*compiler.ColumnDefinition]*jsonschema.Resolved
}

// NewJSONSchemaValidator returns a validator that caches one resolved
// schema per column.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{resolved: make(map[*compiler.ColumnDefinition]*jsonschema.Resolved)}
}

// Validate returns the violations in column order.
func (v *JSONSchemaValidator) Validate(def *compiler.TableDefinition, data map[string]any) []Violation {
	var out []Violation
	for _, col := range def.Columns {
		val, ok := data[col.Name]
		if !ok {
			if isRequired(col) {
				out = append(out, Violation{Field: col.Name, Message: "is required"})
			}
			continue
		}
		rs, err := v.schemaFor(col)
		if err != nil {
			out = append(out, Violation{Field: col.Name, Message: err.Error()})
			continue
		}
		if err := rs.Validate(val); err != nil {
			out = append(out, Violation{Field: col.Name, Message: err.Error()})
		}
	}
	return out
}

func (v *JSONSchemaValidator) schemaFor(col *compiler.ColumnDefinition) (*jsonschema.Resolved, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if rs, ok := v.resolved[col]; ok {
		return rs, nil
	}

	raw, err := json.Marshal(columnSchema(col))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}
	rs, err := s.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JSON schema: %w", err)
	}
	v.resolved[col] = rs
	return rs, nil
}

// columnSchema reduces a property fragment to what a column can hold.
// "date" is checked as a string; array and object lose their type because
// such values arrive encoded as text. Nullable columns also accept null.
// The date column may be omitted but never set to null.
func columnSchema(col *compiler.ColumnDefinition) map[string]any {
	s := make(map[string]any)

	var typ string
	switch t := col.Schema.Type(); t {
	case "date":
		typ = "string"
	case "string", "integer", "number", "boolean":
		typ = t
	}
	switch {
	case col.IsPrimaryKey:
		s["type"] = "integer"
	case col.Name == compiler.ColumnDate:
		s["type"] = "string"
	case typ != "" && col.Nullable:
		s["type"] = []any{typ, "null"}
	case typ != "":
		s["type"] = typ
	}

	if literals, ok := col.Schema.Enum(); ok {
		enum := make([]any, 0, len(literals)+1)
		for _, lit := range literals {
			enum = append(enum, lit.Interface())
		}
		if col.Nullable {
			enum = append(enum, nil)
		}
		s["enum"] = enum
	}
	return s
}

// isRequired reports whether a payload must carry col. id and date are
// filled in by the database.
func isRequired(col *compiler.ColumnDefinition) bool {
	return !col.Nullable && !col.IsPrimaryKey && col.Name != compiler.ColumnDate
}
