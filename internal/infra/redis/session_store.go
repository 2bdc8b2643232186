package redis

import (
	"context"
	"sync"
	"time"

	"chat-quiz-engine/internal/domain"
	"chat-quiz-engine/internal/engine"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of engine.SessionStore.
// Notes:
//   - Sessions themselves stay in process memory; their timers and event
//     serialization cannot move across instances.
//   - Redis marks session liveness so operators (and sibling instances) can
//     see which chats have a quiz running.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*engine.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*engine.Session),
	}
}

func (s *SessionStore) Put(chatID string, session *engine.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[chatID]; ok {
		return domain.ErrQuizRunning
	}
	s.sessions[chatID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(chatID), "1", s.ttl).Err()
	return nil
}

func (s *SessionStore) Get(chatID string) (*engine.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[chatID]
	s.mu.RUnlock()
	if ok {
		// refresh the marker so long quizzes do not look dead mid-session
		_ = s.client.Expire(context.Background(), s.key(chatID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[chatID]; !ok {
		return
	}
	delete(s.sessions, chatID)
	_ = s.client.Del(context.Background(), s.key(chatID)).Err()
}

func (s *SessionStore) key(chatID string) string {
	return "quiz:session:" + chatID
}
