package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/filestore"
	"github.com/koustreak/schemasql/internal/logger"
)

const defaultFetchTimeout = 15 * time.Second

// Loader reads schema documents from a local directory, an s3:// prefix or
// an http(s) base URL, and caches each document by location for the life of
// the Loader.
type Loader struct {
	dir    string
	store  filestore.Store
	client *http.Client
	log    *logger.Logger

	mu    sync.Mutex
	cache map[string]*Document
}

// Option configures a Loader.
type Option func(*Loader)

// WithObjectStore enables s3://bucket/key locations.
func WithObjectStore(s filestore.Store) Option {
	return func(l *Loader) { l.store = s }
}

// WithHTTPClient replaces the client used for http(s) references.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// NewLoader returns a Loader rooted at dir. dir may be a filesystem path,
// s3://bucket/prefix or an http(s) URL.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:    dir,
		client: &http.Client{Timeout: defaultFetchTimeout},
		log:    logger.Nop(),
		cache:  make(map[string]*Document),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the directory documents are looked up in by name.
func (l *Loader) Dir() string { return l.dir }

// Load returns the document for table name, read from {dir}/{name}.json.
func (l *Loader) Load(ctx context.Context, name string) (*Document, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "invalid schema name %q", name)
	}
	return l.LoadLocation(ctx, l.join(l.dir, name+".json"))
}

// LoadLocation reads the document at loc, a path or URL. Results are cached
// by location, so a document is fetched at most once per Loader.
func (l *Loader) LoadLocation(ctx context.Context, loc string) (*Document, error) {
	l.mu.Lock()
	doc, ok := l.cache[loc]
	l.mu.Unlock()
	if ok {
		return doc, nil
	}

	body, err := l.fetch(ctx, loc)
	if err != nil {
		return nil, err
	}
	root, err := Parse(body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSchemaLoad, fmt.Sprintf("%s is not valid JSON", loc), err)
	}
	doc = &Document{Name: NameFromLocation(loc), Location: loc, Root: root}

	l.mu.Lock()
	if cached, ok := l.cache[loc]; ok {
		doc = cached
	} else {
		l.cache[loc] = doc
	}
	l.mu.Unlock()

	l.log.DebugWith("schema loaded", map[string]any{"location": loc, "name": doc.Name})
	return doc, nil
}

// List returns the locations of every *.json document directly inside dir,
// sorted by name.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	switch scheme(l.dir) {
	case filestore.Scheme:
		return l.listObjects(ctx)
	case "http", "https":
		return nil, errs.Newf(errs.ErrKindInvalidInput, "cannot list schemas over http: %s", l.dir)
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSchemaLoad, "cannot read schema directory", err)
	}
	var locs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		locs = append(locs, filepath.Join(l.dir, e.Name()))
	}
	sort.Strings(locs)
	return locs, nil
}

func (l *Loader) listObjects(ctx context.Context) ([]string, error) {
	if l.store == nil {
		return nil, errs.New(errs.ErrKindSchemaLoad, "no object store configured for s3:// schemas")
	}
	bucket, prefix, err := filestore.ParseURL(l.dir)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, err := l.store.ListObjects(ctx, bucket, filestore.ListOptions{Prefix: prefix})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSchemaLoad, "cannot list schema objects", err)
	}
	var locs []string
	for _, o := range objects {
		if o.IsDir || !strings.HasSuffix(o.Key, ".json") {
			continue
		}
		locs = append(locs, filestore.URL(bucket, o.Key))
	}
	sort.Strings(locs)
	return locs, nil
}

func (l *Loader) fetch(ctx context.Context, loc string) ([]byte, error) {
	switch scheme(loc) {
	case filestore.Scheme:
		if l.store == nil {
			return nil, errs.Newf(errs.ErrKindSchemaLoad, "no object store configured for %s", loc)
		}
		bucket, key, err := filestore.ParseURL(loc)
		if err != nil {
			return nil, err
		}
		body, err := filestore.ReadAll(ctx, l.store, bucket, key)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindSchemaLoad, fmt.Sprintf("cannot read %s", loc), err)
		}
		return body, nil

	case "http", "https":
		return l.fetchHTTP(ctx, loc)

	case "file":
		u, err := url.Parse(loc)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindSchemaLoad, "invalid file URL", err)
		}
		loc = u.Path
	}

	body, err := os.ReadFile(loc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSchemaLoad, fmt.Sprintf("cannot read %s", loc), err)
	}
	return body, nil
}

func (l *Loader) fetchHTTP(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSchemaLoad, "invalid schema URL", err)
	}
	req.Header.Set("Accept", "application/schema+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSchemaLoad, fmt.Sprintf("cannot fetch %s", loc), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.ErrKindSchemaLoad, "cannot fetch %s: %s", loc, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSchemaLoad, fmt.Sprintf("cannot read %s", loc), err)
	}
	return body, nil
}

// join resolves rel against a directory path or URL.
func (l *Loader) join(dir, rel string) string {
	if scheme(dir) == "" {
		return filepath.Join(dir, rel)
	}
	base, err := url.Parse(strings.TrimSuffix(dir, "/") + "/")
	if err != nil {
		return dir + "/" + rel
	}
	return base.ResolveReference(&url.URL{Path: rel}).String()
}

// scheme returns the URL scheme of loc, or "" for a plain path.
// Windows drive letters ("C:\...") are not schemes.
func scheme(loc string) string {
	i := strings.Index(loc, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(loc[:i])
}
