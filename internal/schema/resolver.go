package schema

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"

	"github.com/koustreak/schemasql/internal/errs"
)

// refFilePattern accepts "pet.json" and "animals/pet.json" but nothing that
// contains a dot before the extension, so "../pet.json" is not a reference.
var refFilePattern = regexp.MustCompile(`^[^.]+\.json$`)

// Reference is a $ref that was fetched and merged with the fragment that
// pointed at it.
type Reference struct {
	// Name is the referenced document's base name; it names the nested table
	// and suffixes the relation table.
	Name string

	// Location is where the referenced document was read from.
	Location string

	// Schema is the fetched document with the referencing fragment merged on top.
	Schema Value
}

// Document returns the merged schema as a document located where the
// reference points, so its own relative references resolve from there.
func (r *Reference) Document() *Document {
	return &Document{Name: r.Name, Location: r.Location, Root: r.Schema}
}

// Resolve follows the $ref of frag, resolving relative names against base,
// the location of the document that holds frag.
//
// It returns (nil, nil) when frag has no $ref or the $ref is neither an
// absolute URL nor a "name.json" file name; such a property is an ordinary
// column. A reference that cannot be fetched or parsed is an error of kind
// errs.ErrKindReference.
func (l *Loader) Resolve(ctx context.Context, frag Value, base string) (*Reference, error) {
	ref := frag.Ref()
	if ref == "" {
		return nil, nil
	}
	loc, ok := l.locateRef(ref, base)
	if !ok {
		return nil, nil
	}

	doc, err := l.LoadLocation(ctx, loc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindReference, fmt.Sprintf("cannot resolve $ref %q", ref), err)
	}

	return &Reference{
		Name:     NameFromLocation(ref),
		Location: loc,
		Schema:   Merge(doc.Root, frag),
	}, nil
}

// IsReference reports whether ref has a form Resolve will follow.
func IsReference(ref string) bool {
	return isAbsoluteURL(ref) || refFilePattern.MatchString(ref)
}

func (l *Loader) locateRef(ref, base string) (string, bool) {
	if isAbsoluteURL(ref) {
		return ref, true
	}
	if !refFilePattern.MatchString(ref) {
		return "", false
	}
	if scheme(base) != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		return b.ResolveReference(&url.URL{Path: ref}).String(), true
	}
	dir := l.dir
	if base != "" {
		dir = filepath.Dir(base)
	}
	return filepath.Join(dir, ref), true
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
