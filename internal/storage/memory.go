package storage

import (
	"context"
	"errors"
	"sync"
)

// MemoryStorage keeps the users document in process memory. Nothing
// survives a restart; it backs tests and runs without a storage path.
type MemoryStorage struct {
	mu  sync.RWMutex
	doc *Document
}

func CreateMemoryStorage() (*MemoryStorage, error) {
	return &MemoryStorage{}, nil
}

func (m *MemoryStorage) Load(ctx context.Context) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.doc == nil {
		return nil, ErrNoDocument
	}
	return m.doc.Clone(), nil
}

func (m *MemoryStorage) Save(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc = doc.Clone()
	return nil
}

func (m *MemoryStorage) PingContext(c context.Context) error {
	return errors.ErrUnsupported
}
