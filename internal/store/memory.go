package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process implementation of DocumentStore and ChunkStore.
// Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]Document
	indexes map[string]*memIndex
}

type memIndex struct {
	version uint64
	chunks  []Chunk
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]Document),
		indexes: make(map[string]*memIndex),
	}
}

var (
	_ DocumentStore = (*Memory)(nil)
	_ ChunkStore    = (*Memory)(nil)
)

// Put creates or replaces a document record.
func (m *Memory) Put(_ context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	m.docs[doc.ID] = doc
	return nil
}

// Get returns a document by id.
func (m *Memory) Get(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &doc, nil
}

// GetTitle returns the title of a document.
func (m *Memory) GetTitle(ctx context.Context, id string) (string, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Title, nil
}

// Delete removes a document record.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// List returns all document ids.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

// Replace atomically swaps the chunk set for a document if version advances
// the stored watermark.
func (m *Memory) Replace(_ context.Context, docID string, version uint64, chunks []Chunk) error {
	if err := validateChunks(docID, chunks); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexes[docID]
	if idx != nil && version <= idx.version {
		return fmt.Errorf("%w: document %s version %d, stored %d", ErrStaleVersion, docID, version, idx.version)
	}

	cp := make([]Chunk, len(chunks))
	copy(cp, chunks)
	now := time.Now()
	for i := range cp {
		cp[i].DocumentID = docID
		if cp[i].CreatedAt.IsZero() {
			cp[i].CreatedAt = now
		}
	}

	m.indexes[docID] = &memIndex{version: version, chunks: cp}
	return nil
}

// GetAll returns the chunk set for a document ordered by chunk index.
func (m *Memory) GetAll(_ context.Context, docID string) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.indexes[docID]
	if idx == nil {
		return nil, nil
	}
	cp := make([]Chunk, len(idx.chunks))
	copy(cp, idx.chunks)
	return cp, nil
}

// Purge removes the chunk set and records version as the new watermark.
func (m *Memory) Purge(_ context.Context, docID string, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexes[docID]
	if idx != nil && version <= idx.version {
		return fmt.Errorf("%w: document %s version %d, stored %d", ErrStaleVersion, docID, version, idx.version)
	}
	m.indexes[docID] = &memIndex{version: version}
	return nil
}

// Version returns the stored version watermark for a document.
func (m *Memory) Version(_ context.Context, docID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx := m.indexes[docID]; idx != nil {
		return idx.version, nil
	}
	return 0, nil
}
