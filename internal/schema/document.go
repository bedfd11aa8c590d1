package schema

import (
	"path"
	"strings"
)

// Document is a loaded schema file. It is never modified after loading.
type Document struct {
	// Name is the base name of the source without ".json"; it names the table.
	Name string

	// Location is the file path or URL the document was read from.
	// Relative $ref values resolve against it.
	Location string

	Root Value
}

// IsObject reports whether the document describes an object type.
// A document without "type" is not compiled.
func (d *Document) IsObject() bool {
	return d.Root.Type() == "object"
}

// NameFromLocation derives a table name from a path or URL: the base file
// name with a trailing ".json" removed.
func NameFromLocation(loc string) string {
	if i := strings.IndexAny(loc, "?#"); i >= 0 && strings.Contains(loc, "://") {
		loc = loc[:i]
	}
	base := path.Base(strings.ReplaceAll(loc, `\`, "/"))
	return strings.TrimSuffix(base, ".json")
}
