package memory

import (
	"sync"

	"chat-quiz-engine/internal/domain"
	"chat-quiz-engine/internal/engine"
)

// SessionStore is the in-memory implementation of engine.SessionStore.
// Put is put-if-absent so a duplicate start can never orphan a live
// session's timers.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*engine.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*engine.Session)}
}

func (s *SessionStore) Put(chatID string, session *engine.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[chatID]; ok {
		return domain.ErrQuizRunning
	}
	s.sessions[chatID] = session
	return nil
}

func (s *SessionStore) Get(chatID string) (*engine.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[chatID]
	return session, ok
}

func (s *SessionStore) Delete(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
