package filestore

// ObjectInfo describes a single entry returned by ListObjects.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "schemas/person.json").
	Key string

	// IsDir is true when the entry represents a virtual directory (prefix),
	// not an actual stored object.
	IsDir bool
}

// ListOptions controls how ListObjects filters results.
type ListOptions struct {
	// Prefix restricts results to objects whose key starts with this string.
	// Use "" to list everything in the bucket.
	Prefix string
}
