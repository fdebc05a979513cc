package state

import "sync"

type memoryStore[S any] struct {
	mu       sync.Mutex
	sessions map[int64]*S
}

// NewMemoryStore constructs an in-memory Store. Sessions are lost on restart.
func NewMemoryStore[S any]() Store[S] {
	return &memoryStore[S]{sessions: make(map[int64]*S)}
}

func (m *memoryStore[S]) Get(chatID int64) (S, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[chatID]; ok {
		return *s, true
	}
	var zero S
	return zero, false
}

func (m *memoryStore[S]) Update(chatID int64, fn func(s *S, exists bool) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = new(S)
	}
	if fn(s, ok) {
		m.sessions[chatID] = s
		return
	}
	delete(m.sessions, chatID)
}

func (m *memoryStore[S]) Delete(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

func (m *memoryStore[S]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *memoryStore[S]) Range(fn func(chatID int64, s S) bool) {
	m.mu.Lock()
	snapshot := make(map[int64]S, len(m.sessions))
	for id, s := range m.sessions {
		snapshot[id] = *s
	}
	m.mu.Unlock()
	for id, s := range snapshot {
		if !fn(id, s) {
			return
		}
	}
}
