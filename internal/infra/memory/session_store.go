package memory

import (
	"context"
	"sync"
	"time"

	"github.com/H-SG/telegram-quizbot/internal/domain"
)

// SessionStore is an in-memory implementation of quiz.SessionStore.
// Sessions idle for longer than the TTL are evicted by a janitor
// goroutine; a zero TTL disables eviction and sessions live for the
// process lifetime.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time
	done  chan struct{}

	mu       sync.RWMutex
	sessions map[int64]*entry
}

type entry struct {
	sess     domain.Session
	lastSeen time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	s := newSessionStoreWithClock(ttl, time.Now)
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

// newSessionStoreWithClock allows deterministic eviction in tests. The
// janitor is not started; tests call evictExpired directly.
func newSessionStoreWithClock(ttl time.Duration, clock func() time.Time) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    clock,
		done:     make(chan struct{}),
		sessions: make(map[int64]*entry),
	}
}

// Get returns a copy of the user's session, or (nil, nil) when absent.
// Reading refreshes the idle clock.
func (s *SessionStore) Get(_ context.Context, userID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	e.lastSeen = s.clock()
	sess := e.sess
	sess.QuestionOrder = append([]string(nil), e.sess.QuestionOrder...)
	return &sess, nil
}

func (s *SessionStore) Put(_ context.Context, userID int64, sess *domain.Session) error {
	stored := *sess
	stored.QuestionOrder = append([]string(nil), sess.QuestionOrder...)

	s.mu.Lock()
	s.sessions[userID] = &entry{sess: stored, lastSeen: s.clock()}
	s.mu.Unlock()
	return nil
}

// Close stops the janitor.
func (s *SessionStore) Close() {
	close(s.done)
}

func (s *SessionStore) janitor() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.done:
			return
		}
	}
}

func (s *SessionStore) evictExpired() {
	cutoff := s.clock().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, userID)
		}
	}
}
