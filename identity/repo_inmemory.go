package identity

import (
	"errors"
	"sync"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	session *Session
}

// NewInMemoryRepo creates a new in-memory identity session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{}
}

// Bind stores the session, replacing any existing one
func (r *InMemoryRepo) Bind(session *Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy to prevent external modifications
	bound := *session
	r.session = &bound
	return nil
}

// Current returns the active session, if any
func (r *InMemoryRepo) Current() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.session == nil {
		return nil, false
	}
	session := *r.session
	return &session, true
}

// Clear removes the active session
func (r *InMemoryRepo) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.session = nil
	return nil
}
