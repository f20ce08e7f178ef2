package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory. Presigned URLs use the
// memory:// scheme and are not fetchable.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object
	now     func() time.Time
}

func NewMemory(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]object), now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: bytes.Clone(data), contentType: contentType}
	return fmt.Sprintf("memory://%s/%s", m.bucket, key), nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStore) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	expires := m.now().Add(ttl).Unix()
	return fmt.Sprintf("memory://%s/%s?expires=%d", m.bucket, url.PathEscape(key), expires), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
