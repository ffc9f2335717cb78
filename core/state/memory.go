package state

import "sync"

type memoryManager[S any] struct {
	mu       sync.RWMutex
	sessions map[int64]S
}

// NewMemoryManager constructs an in-memory Manager. Sessions are lost on restart.
func NewMemoryManager[S any]() Manager[S] {
	return &memoryManager[S]{
		sessions: make(map[int64]S),
	}
}

// Get returns the session for a user if it exists.
func (m *memoryManager[S]) Get(userID int64) (S, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[userID]
	return session, ok
}

// Set replaces the session for a user.
func (m *memoryManager[S]) Set(userID int64, session S) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[userID] = session
}

// Take pops the session for a user.
func (m *memoryManager[S]) Take(userID int64) (S, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	return session, ok
}

// Clear removes the session for a user.
func (m *memoryManager[S]) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has a session.
func (m *memoryManager[S]) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sessions[userID]
	return ok
}

// Len returns the number of open sessions.
func (m *memoryManager[S]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
