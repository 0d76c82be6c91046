package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// Memory is an in-process Storage. It backs STORAGE_DRIVER=memory and the tests.
type Memory struct {
	mu         sync.RWMutex
	objects    map[string]memoryObject
	publicBase string
}

// NewMemory returns an empty in-memory store serving URLs under publicBase.
func NewMemory(publicBase string) *Memory {
	return &Memory{
		objects:    make(map[string]memoryObject),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Put reads the whole body and stores it. A reader error leaves nothing behind.
func (m *Memory) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("put object %q: read %d bytes, expected %d", key, len(data), size)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, contentType: contentType, lastModified: time.Now()}
	m.mu.Unlock()

	return m.PublicURL(key), nil
}

// Delete removes key; missing keys are ignored.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// PublicURL returns publicBase + "/" + key.
func (m *Memory) PublicURL(key string) string {
	return m.publicBase + "/" + key
}

// List walks objects in key order.
func (m *Memory) List(ctx context.Context, fn func(Object) error) error {
	m.mu.RLock()
	objs := make([]Object, 0, len(m.objects))
	for k, o := range m.objects {
		objs = append(objs, Object{Key: k, Size: int64(len(o.data)), LastModified: o.lastModified})
	}
	m.mu.RUnlock()

	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	for _, o := range objs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored bytes and content type for key.
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o.data, o.contentType, ok
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// SetLastModified backdates an object; it reports false when key is absent.
func (m *Memory) SetLastModified(key string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return false
	}
	o.lastModified = t
	m.objects[key] = o
	return true
}
