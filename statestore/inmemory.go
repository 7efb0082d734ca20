package statestore

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is a thread-safe in-memory implementation of the Store
// interface. It is the default store and the one tests run against.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[Scope]map[string]string
}

// NewMemoryStore creates a new in-memory state store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scopes: make(map[Scope]map[string]string),
	}
}

// Get retrieves a value by scope and key
func (s *MemoryStore) Get(_ context.Context, scope Scope, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.scopes[scope]
	if !ok {
		return "", false, nil
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set stores or replaces a value
func (s *MemoryStore) Set(_ context.Context, scope Scope, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scopes[scope]; !ok {
		s.scopes[scope] = make(map[string]string)
	}
	s.scopes[scope][key] = value
	return nil
}

// Delete removes a key; deleting a missing key is not an error
func (s *MemoryStore) Delete(_ context.Context, scope Scope, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if values, ok := s.scopes[scope]; ok {
		delete(values, key)
	}
	return nil
}

// ClearScope removes every key in the scope
func (s *MemoryStore) ClearScope(_ context.Context, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.scopes, scope)
	return nil
}
