package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"greencredits/pkg/platform/sentinel"
)

// InMemoryStore keeps blobs in a map. Test double for the disk and GCS stores.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := uuid.NewString()
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *InMemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.blobs[ref]; ok {
		return append([]byte(nil), data...), nil
	}
	return nil, fmt.Errorf("blob %s: %w", ref, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

// Len reports the number of stored blobs. Tests use it to assert cleanup.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
