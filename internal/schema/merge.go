package schema

// Merge overlays override on base. When both sides are objects they are
// merged key by key with the same rule; otherwise override replaces base
// wholesale, arrays included. Keys of base keep their position and keys only
// present in override are appended in override's order.
func Merge(base, override Value) Value {
	if !base.IsObject() || !override.IsObject() {
		return override
	}
	out := base
	for _, m := range override.members {
		if existing, ok := out.Get(m.Key); ok {
			out = out.With(m.Key, Merge(existing, m.Value))
			continue
		}
		out = out.With(m.Key, m.Value)
	}
	return out
}
