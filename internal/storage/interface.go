package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrObjectNotFound is returned (wrapped) when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the interface for object storage operations
type ObjectStorage interface {
	// EnsureBucket creates the bucket if the backend allows it.
	EnsureBucket(ctx context.Context) error

	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for accessing an object
	GetURL(key string) string

	// KeyFromURL derives the object key from a URL previously returned by GetURL.
	KeyFromURL(url string) (string, error)
}

// keyFromURL strips base (with or without a trailing slash) from url.
func keyFromURL(base, url string) (string, error) {
	base = strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(url, base) {
		return "", fmt.Errorf("url %q is not served from %q", url, base)
	}
	key := strings.TrimPrefix(url, base)
	if key == "" {
		return "", fmt.Errorf("url %q has no object key", url)
	}
	return key, nil
}
