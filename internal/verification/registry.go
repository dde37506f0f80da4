package verification

import (
	"context"
	"sync"
)

// Registry tracks the active sessions of the process.
type Registry interface {
	// Register adds a session. It fails with ErrAlreadyActive and leaves the
	// existing entry in place when the key is taken.
	Register(ctx context.Context, session *Session) error
	// Deregister removes the session of a key. Removing an absent key is not an error.
	Deregister(ctx context.Context, key Key) error
	// Get returns the active session of a key.
	Get(key Key) (*Session, bool)
	// Len returns the number of active sessions.
	Len() int
}

// MemoryRegistry is a Registry local to the process.
type MemoryRegistry struct {
	sessions map[Key]*Session
	mu       sync.RWMutex
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[Key]*Session),
	}
}

// Register adds a session unless its key is already taken.
func (r *MemoryRegistry) Register(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := session.Key()
	if _, exists := r.sessions[key]; exists {
		return ErrAlreadyActive
	}

	r.sessions[key] = session

	return nil
}

// Deregister removes the session of a key.
func (r *MemoryRegistry) Deregister(_ context.Context, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key)

	return nil
}

// Get returns the active session of a key.
func (r *MemoryRegistry) Get(key Key) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[key]

	return session, ok
}

// Len returns the number of active sessions.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
