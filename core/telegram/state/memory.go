package state

import (
	"context"
	"sync"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryManager constructs an in-memory Manager implementation for tests and development.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]Session),
	}
}

// Load returns a copy of the stored session or an empty one.
func (m *memoryManager) Load(_ context.Context, chatID int64) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[chatID]; ok {
		return s.Clone(), nil
	}
	return Session{Data: make(map[string]string)}, nil
}

func (m *memoryManager) Save(_ context.Context, chatID int64, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[chatID] = s.Clone()
	return nil
}

// Clear removes the entire session for a chat.
func (m *memoryManager) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
	return nil
}
