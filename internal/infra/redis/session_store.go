package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"ielts-practice-engine/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions (controllers, timers, subscribers) live in process; Redis holds a
// liveness key per user with the quiz they have open so other instances can
// see who is mid-attempt.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := s.sessions[session.UserID]
	s.sessions[session.UserID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(session.UserID), session.QuizID, s.ttl).Err()
	return replaced
}

// Get returns the local session and refreshes its liveness key.
func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(userID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	_ = s.client.Del(context.Background(), s.key(userID)).Err()
}

// ActiveQuiz reports which quiz a user has open on any instance.
func (s *SessionStore) ActiveQuiz(ctx context.Context, userID string) (string, bool, error) {
	quizID, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return quizID, true, nil
}

func (s *SessionStore) key(userID string) string {
	return "practice:session:" + userID
}
