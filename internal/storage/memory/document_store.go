// Package memory stores documents in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/linkrank/internal/crawler"
)

// DocumentStore keeps documents in a map keyed by id.
type DocumentStore struct {
	mu   sync.RWMutex
	data map[int][]byte
}

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{data: make(map[int][]byte)}
}

// Exists reports whether a document is stored for id.
func (s *DocumentStore) Exists(_ context.Context, id int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok, nil
}

// Get returns a copy of the stored document.
func (s *DocumentStore) Get(_ context.Context, id int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, crawler.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Put reads the whole body before publishing it, so a failed read stores
// nothing.
func (s *DocumentStore) Put(ctx context.Context, id int, body io.Reader) (string, error) {
	byteData, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("put canceled: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = byteData
	return fmt.Sprintf("memory://%s", crawler.DocumentKey("", id)), nil
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
