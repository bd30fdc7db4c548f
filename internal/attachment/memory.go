package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Blob is a stored file.
type Blob struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps blobs in process memory and serves them under a URL prefix.
type MemoryStore struct {
	mu     sync.RWMutex
	prefix string
	blobs  map[string]Blob
}

// NewMemoryStore creates a store whose URLs are prefix + key.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{prefix: prefix, blobs: make(map[string]Blob)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Put(ctx context.Context, key, contentType string, size int64, body io.Reader) error {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	m.mu.Lock()
	m.blobs[key] = Blob{ContentType: contentType, Data: buf.Bytes()}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) URL(ctx context.Context, key string) (string, error) {
	return m.prefix + key, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.blobs, key)
	m.mu.Unlock()
	return nil
}

// Get returns the blob stored under key.
func (m *MemoryStore) Get(key string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[key]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return b, nil
}
