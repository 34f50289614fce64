package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MemoryStore is an in-process BlobStore.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates a MemoryStore whose public URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimSuffix(baseURL, "/"), objects: make(map[string]object)}
}

func (m *MemoryStore) Upload(ctx context.Context, objectPath string, body io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("media/memory: read %s: %w", objectPath, err)
	}

	m.mu.Lock()
	m.objects[objectPath] = object{data: data, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PublicURL(objectPath string) string {
	return m.baseURL + "/" + objectPath
}

// Open returns the stored object.
func (m *MemoryStore) Open(objectPath string) (io.Reader, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[objectPath]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	return bytes.NewReader(o.data), o.contentType, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
