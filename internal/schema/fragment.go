package schema

// Keywords interpreted by the compiler. Everything else in a document is
// carried through merges but otherwise ignored.
const (
	KeyType        = "type"
	KeyProperties  = "properties"
	KeyRequired    = "required"
	KeyEnum        = "enum"
	KeyDefault     = "default"
	KeyMinItems    = "minItems"
	KeyTitle       = "title"
	KeyDescription = "description"
	KeyRef         = "$ref"
)

// Type returns the "type" keyword, or "".
func (v Value) Type() string {
	t, _ := v.Get(KeyType)
	return t.Str()
}

// Ref returns the "$ref" keyword, or "".
func (v Value) Ref() string {
	r, _ := v.Get(KeyRef)
	return r.Str()
}

// Title returns the "title" keyword, or "".
func (v Value) Title() string {
	t, _ := v.Get(KeyTitle)
	return t.Str()
}

// Description returns the "description" keyword, or "".
func (v Value) Description() string {
	d, _ := v.Get(KeyDescription)
	return d.Str()
}

// Properties returns the "properties" members in declaration order.
func (v Value) Properties() []Member {
	p, ok := v.Get(KeyProperties)
	if !ok || !p.IsObject() {
		return nil
	}
	return p.members
}

// Property looks up one entry of "properties".
func (v Value) Property(name string) (Value, bool) {
	p, ok := v.Get(KeyProperties)
	if !ok {
		return Value{}, false
	}
	return p.Get(name)
}

// RequiredNames returns the string entries of a "required" array.
// A boolean "required" (the per-property form) yields nil.
func (v Value) RequiredNames() []string {
	r, ok := v.Get(KeyRequired)
	if !ok || !r.IsArray() {
		return nil
	}
	names := make([]string, 0, len(r.items))
	for _, item := range r.items {
		if item.kind == KindString {
			names = append(names, item.text)
		}
	}
	return names
}

// RequiredFlag reports the per-property form "required": true.
func (v Value) RequiredFlag() bool {
	r, _ := v.Get(KeyRequired)
	return r.Truthy()
}

// Enum returns the "enum" literals in declared order.
func (v Value) Enum() ([]Value, bool) {
	e, ok := v.Get(KeyEnum)
	if !ok || !e.IsArray() {
		return nil, false
	}
	return e.items, true
}

// Default returns the "default" keyword.
func (v Value) Default() (Value, bool) {
	return v.Get(KeyDefault)
}

// MinItems returns "minItems", or 0.
func (v Value) MinItems() int64 {
	m, ok := v.Get(KeyMinItems)
	if !ok {
		return 0
	}
	n, _ := m.Int64()
	return n
}
