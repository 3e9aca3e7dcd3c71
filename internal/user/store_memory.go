package user

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"greencredits/pkg/platform/sentinel"
)

// InMemoryStore keeps users in process memory, keyed by lowercased email.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]User)}
}

func (s *InMemoryStore) Insert(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return fmt.Errorf("email %s: %w", u.Email, sentinel.ErrConflict)
	}
	s.users[key] = u
	return nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return User{}, fmt.Errorf("email %s: %w", email, sentinel.ErrNotFound)
}
