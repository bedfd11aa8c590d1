// Package filestore defines the interface for object storage backends that
// hold schema documents (s3://bucket/key references and bucket directories).
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	body, err := filestore.ReadAll(ctx, store, "schemas", "person.json")
package filestore

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/koustreak/schemasql/internal/errs"
)

// Scheme is the URL scheme that routes a schema location to a Store.
const Scheme = "s3"

// Store is the interface all object storage providers implement.
// It is scoped to read operations.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// ListObjects returns the entries directly under opts.Prefix in bucket.
	// Deeper keys are grouped into IsDir entries, one per virtual directory.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// A missing key is reported here, not on the first Read.
	// The caller MUST call Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ReadAll downloads the whole object at key.
func ReadAll(ctx context.Context, s Store, bucket, key string) ([]byte, error) {
	obj, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read object body", err)
	}
	return body, nil
}

// ParseURL splits s3://bucket/key into its bucket and key.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", errs.Wrap(errs.ErrKindInvalidInput, "invalid object URL", err)
	}
	if u.Scheme != Scheme || u.Host == "" {
		return "", "", errs.Newf(errs.ErrKindInvalidInput, "not an %s:// URL: %q", Scheme, raw)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// URL is the inverse of ParseURL.
func URL(bucket, key string) string {
	return Scheme + "://" + bucket + "/" + strings.TrimPrefix(key, "/")
}
