package schema

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/filestore"
)

func writeSchemas(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func TestLoader_LoadByName(t *testing.T) {
	dir := writeSchemas(t, map[string]string{
		"person.json": `{"type":"object","properties":{"name":{"type":"string"}}}`,
	})
	l := NewLoader(dir)

	doc, err := l.Load(context.Background(), "person")
	require.NoError(t, err)
	assert.Equal(t, "person", doc.Name)
	assert.Equal(t, filepath.Join(dir, "person.json"), doc.Location)
	assert.True(t, doc.IsObject())

	again, err := l.Load(context.Background(), "person")
	require.NoError(t, err)
	assert.Same(t, doc, again, "documents are cached by location")
}

func TestLoader_LoadErrors(t *testing.T) {
	dir := writeSchemas(t, map[string]string{"broken.json": `{"type":`})
	l := NewLoader(dir)

	_, err := l.Load(context.Background(), "missing")
	assert.True(t, errs.IsSchemaLoad(err))

	_, err = l.Load(context.Background(), "broken")
	assert.True(t, errs.IsSchemaLoad(err))

	_, err = l.Load(context.Background(), "../etc/passwd")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoader_List(t *testing.T) {
	dir := writeSchemas(t, map[string]string{
		"b.json":       `{}`,
		"a.json":       `{}`,
		"notes.txt":    `x`,
		"sub/pet.json": `{}`,
	})
	locs, err := NewLoader(dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, locs)
}

func TestResolve_RelativeFile(t *testing.T) {
	dir := writeSchemas(t, map[string]string{
		"person.json":      `{"type":"object","properties":{"pet":{"$ref":"animals/pet.json","title":"Buddy"}}}`,
		"animals/pet.json": `{"type":"object","title":"Pet","properties":{"species":{"type":"string"}}}`,
	})
	l := NewLoader(dir)
	ctx := context.Background()

	person, err := l.Load(ctx, "person")
	require.NoError(t, err)
	frag, _ := person.Root.Property("pet")

	ref, err := l.Resolve(ctx, frag, person.Location)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "pet", ref.Name)
	assert.Equal(t, filepath.Join(dir, "animals", "pet.json"), ref.Location)
	assert.Equal(t, "Buddy", ref.Schema.Title())
	assert.Equal(t, "object", ref.Schema.Type())

	doc := ref.Document()
	assert.Equal(t, "pet", doc.Name)
	assert.Equal(t, ref.Location, doc.Location)
}

func TestResolve_NotAReference(t *testing.T) {
	l := NewLoader(t.TempDir())
	ctx := context.Background()

	for _, frag := range []string{
		`{"type":"string"}`,
		`{"$ref":"#/definitions/pet"}`,
		`{"$ref":"../pet.json"}`,
		`{"$ref":"pet.yaml"}`,
	} {
		ref, err := l.Resolve(ctx, MustParse(frag), "")
		assert.NoError(t, err, frag)
		assert.Nil(t, ref, frag)
	}
}

func TestResolve_MissingTargetIsReferenceError(t *testing.T) {
	l := NewLoader(t.TempDir())

	ref, err := l.Resolve(context.Background(), MustParse(`{"$ref":"ghost.json"}`), "")
	assert.Nil(t, ref)
	require.Error(t, err)
	assert.True(t, errs.IsReference(err))
	assert.Contains(t, err.Error(), "ghost.json")
}

func TestResolve_HTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/schemas/person.json":
			_, _ = io.WriteString(w, `{"type":"object","properties":{"pet":{"$ref":"pet.json"}}}`)
		case "/schemas/pet.json":
			_, _ = io.WriteString(w, `{"type":"object","properties":{"species":{"type":"string"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(srv.URL + "/schemas")
	ctx := context.Background()

	person, err := l.Load(ctx, "person")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/schemas/person.json", person.Location)

	frag, _ := person.Root.Property("pet")
	ref, err := l.Resolve(ctx, frag, person.Location)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/schemas/pet.json", ref.Location)
	assert.Equal(t, "pet", ref.Name)

	_, err = l.Resolve(ctx, MustParse(`{"$ref":"`+srv.URL+`/nope.json"}`), "")
	assert.True(t, errs.IsReference(err))

	_, err = l.Load(ctx, "person")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

// memStore is an in-memory filestore.Store.
type memStore struct {
	objects map[string]string // "bucket/key" -> body
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

// ListObjects groups keys below the first "/" after the prefix into
// directory entries, the way a delimited bucket listing does.
func (s *memStore) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	seen := make(map[string]bool)
	var out []filestore.ObjectInfo
	for k := range s.objects {
		b, key, _ := strings.Cut(k, "/")
		if b != bucket || !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		info := filestore.ObjectInfo{Key: key}
		if i := strings.Index(key[len(opts.Prefix):], "/"); i >= 0 {
			info = filestore.ObjectInfo{Key: key[:len(opts.Prefix)+i+1], IsDir: true}
		}
		if !seen[info.Key] {
			seen[info.Key] = true
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *memStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	body, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no such key %s", key)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestLoader_ObjectStore(t *testing.T) {
	store := &memStore{objects: map[string]string{
		"schemas/v1/person.json":  `{"type":"object","properties":{"pet":{"$ref":"pet.json"}}}`,
		"schemas/v1/pet.json":     `{"type":"object"}`,
		"schemas/v1/readme.md":    `# schemas`,
		"schemas/v1/old/pet.json": `{"type":"object"}`,
	}}
	l := NewLoader("s3://schemas/v1", WithObjectStore(store))
	ctx := context.Background()

	locs, err := l.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://schemas/v1/person.json", "s3://schemas/v1/pet.json"}, locs)

	person, err := l.Load(ctx, "person")
	require.NoError(t, err)
	assert.Equal(t, "s3://schemas/v1/person.json", person.Location)

	frag, _ := person.Root.Property("pet")
	ref, err := l.Resolve(ctx, frag, person.Location)
	require.NoError(t, err)
	assert.Equal(t, "s3://schemas/v1/pet.json", ref.Location)
}

func TestLoader_ObjectStoreMissingKey(t *testing.T) {
	store := &memStore{objects: map[string]string{"schemas/v1/pet.json": `{"type":"object"}`}}
	_, err := NewLoader("s3://schemas/v1", WithObjectStore(store)).Load(context.Background(), "person")
	assert.True(t, errs.IsSchemaLoad(err))
	assert.Equal(t, errs.ErrKindNotFound, errs.KindOf(errors.Unwrap(err)))
}

func TestLoader_ObjectStoreNotConfigured(t *testing.T) {
	_, err := NewLoader("s3://schemas").Load(context.Background(), "person")
	assert.True(t, errs.IsSchemaLoad(err))
}
