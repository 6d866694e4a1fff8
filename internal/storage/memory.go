package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in process memory. It backs local development
// and tests; nothing survives a restart.
type MemoryStorage struct {
	mu        sync.RWMutex
	objects   map[string]memoryObject
	publicURL string
}

// NewMemoryStorage creates an empty in-memory store. publicURL defaults to
// memory://<bucket>.
func NewMemoryStorage(bucket, publicURL string) *MemoryStorage {
	publicURL = strings.TrimSuffix(publicURL, "/")
	if publicURL == "" {
		if bucket == "" {
			bucket = "default"
		}
		publicURL = "memory://" + bucket
	}
	return &MemoryStorage{
		objects:   make(map[string]memoryObject),
		publicURL: publicURL,
	}
}

// EnsureBucket is a no-op.
func (s *MemoryStorage) EnsureBucket(ctx context.Context) error {
	return ctx.Err()
}

// Upload stores a copy of the reader's content.
func (s *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("upload size mismatch: declared %d, read %d", size, len(data))
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return nil
}

// Download returns a reader over a copy of the object.
func (s *MemoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))), nil
}

// Exists checks if an object exists.
func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}

// Delete removes an object; missing keys are ignored.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// GetURL returns the URL for accessing an object
func (s *MemoryStorage) GetURL(key string) string {
	return s.publicURL + "/" + key
}

// KeyFromURL strips the public URL prefix.
func (s *MemoryStorage) KeyFromURL(url string) (string, error) {
	return keyFromURL(s.publicURL, url)
}

// ContentType returns the stored content type of key.
func (s *MemoryStorage) ContentType(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.contentType, ok
}

// Keys lists the stored keys.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
