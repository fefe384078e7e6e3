// The storage engine: object-addressed blob store.
//
// Backend is the uniform contract across the memory and filesystem
// engines. Callers address a blob by StoragePath — [database, collection,
// blob name] — never by a single joined string, so each backend picks its
// own safe join/encoding strategy.
package folio

import (
	"strings"
	"sync"
)

// StoragePath addresses one blob: database, collection, and blob name
// segments, in that order.
type StoragePath []string

func (p StoragePath) join(sep string) string {
	return strings.Join(p, sep)
}

// Token is an opaque, comparable value returned by Touch. Two tokens for
// the same path compare equal iff no write has landed between the two
// reads that produced them.
type Token interface{}

// Backend is the pluggable storage contract. Every method is safe for
// concurrent use by multiple goroutines; serialization of conflicting
// writes is the Lock Registry's job, not the backend's.
type Backend interface {
	Get(path StoragePath) ([]byte, error)
	Put(path StoragePath, data []byte) error
	Delete(path StoragePath) (bool, error)
	List(prefix StoragePath) ([]StoragePath, error)
	Touch(path StoragePath) (Token, error)
	Close() error
}

// MemoryBackend is a process-local, map-backed Backend.
type MemoryBackend struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	touches map[string]int64
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		blobs:   make(map[string][]byte),
		touches: make(map[string]int64),
	}
}

func (m *MemoryBackend) Get(path StoragePath) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[path.join("\x00")]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryBackend) Put(path StoragePath, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := path.join("\x00")
	stored := make([]byte, len(data))
	copy(stored, data)
	m.blobs[key] = stored
	m.touches[key]++
	return nil
}

func (m *MemoryBackend) Delete(path StoragePath) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := path.join("\x00")
	_, existed := m.blobs[key]
	delete(m.blobs, key)
	m.touches[key]++
	return existed, nil
}

func (m *MemoryBackend) List(prefix StoragePath) ([]StoragePath, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := prefix.join("\x00")
	var out []StoragePath
	for key := range m.blobs {
		if len(prefix) == 0 || key == p || strings.HasPrefix(key, p+"\x00") {
			out = append(out, StoragePath(strings.Split(key, "\x00")))
		}
	}
	return out, nil
}

func (m *MemoryBackend) Touch(path StoragePath) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.touches[path.join("\x00")], nil
}

func (m *MemoryBackend) Close() error { return nil }
