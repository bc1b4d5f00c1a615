package dal

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements Store using in-memory maps
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Collection]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: emptyCollections()}
}

func emptyCollections() map[Collection]map[string][]byte {
	records := make(map[Collection]map[string][]byte, len(Collections))
	for _, c := range Collections {
		records[c] = make(map[string][]byte)
	}
	return records
}

func (m *MemoryStore) bucket(c Collection) (map[string][]byte, error) {
	b, ok := m.records[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	return b, nil
}

func (m *MemoryStore) Add(_ context.Context, c Collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.bucket(c)
	if err != nil {
		return err
	}
	if _, exists := b[id]; exists {
		return fmt.Errorf("%w: %s/%s", ErrExists, c, id)
	}
	b[id] = cloneBytes(data)
	return nil
}

func (m *MemoryStore) Put(_ context.Context, c Collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.bucket(c)
	if err != nil {
		return err
	}
	b[id] = cloneBytes(data)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, c Collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, err := m.bucket(c)
	if err != nil {
		return nil, err
	}
	data, ok := b[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, c, id)
	}
	return cloneBytes(data), nil
}

func (m *MemoryStore) GetAll(_ context.Context, c Collection) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, err := m.bucket(c)
	if err != nil {
		return nil, err
	}
	docs := make([]Doc, 0, len(b))
	for id, data := range b {
		docs = append(docs, Doc{ID: id, Data: cloneBytes(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MemoryStore) Delete(_ context.Context, c Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.bucket(c)
	if err != nil {
		return err
	}
	delete(b, id)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, c Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.bucket(c); err != nil {
		return err
	}
	m.records[c] = make(map[string][]byte)
	return nil
}

func (m *MemoryStore) ReplaceAll(_ context.Context, docs map[Collection][]Doc) error {
	next := emptyCollections()
	for c, list := range docs {
		b, ok := next[c]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
		}
		for _, d := range list {
			b[d.ID] = cloneBytes(d.Data)
		}
	}

	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
