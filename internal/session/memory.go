package session

import (
	"context"
	"sync"
	"time"

	"github.com/walletbot/ingress/internal/models"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]models.Session
	nowFn    func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(nowFn func() time.Time) *MemoryStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{sessions: make(map[int64]models.Session), nowFn: nowFn}
}

// Touch implements Store.
func (s *MemoryStore) Touch(_ context.Context, externalID int64, internalID string) (models.Session, error) {
	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[externalID]
	if !ok {
		sess = models.Session{
			ExternalID:    externalID,
			InternalID:    internalID,
			Authenticated: true,
			Preferences:   emptyPreferences(),
			CreatedAt:     now,
		}
	}
	if sess.InternalID == "" {
		sess.InternalID = internalID
	}
	sess.LastActivity = now
	s.sessions[externalID] = sess

	sess.Preferences = clonePreferences(sess.Preferences)
	return sess, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, externalID int64) (models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[externalID]
	if !ok {
		return models.Session{}, false, nil
	}
	sess.Preferences = clonePreferences(sess.Preferences)
	return sess, true, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, externalID int64) error {
	s.mu.Lock()
	delete(s.sessions, externalID)
	s.mu.Unlock()
	return nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(_ context.Context, idleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(idleBefore) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
