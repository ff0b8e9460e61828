package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process session store for tests and single-node
// setups without persistence requirements.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
	}
}

// CheckExists reports whether a session exists for the sender.
func (s *MemoryStore) CheckExists(_ context.Context, senderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[senderID]
	return ok, nil
}

// Get returns the sender's session, creating one on first contact.
func (s *MemoryStore) Get(_ context.Context, senderID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[senderID]; ok {
		return sess, nil
	}

	sess := Session{
		SenderID:  senderID,
		SessionID: uuid.NewString(),
		UpdatedAt: time.Now(),
	}
	s.sessions[senderID] = sess
	return sess, nil
}

// Set refreshes the sender's session record, creating it if absent.
func (s *MemoryStore) Set(_ context.Context, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[senderID]
	if !ok {
		sess = Session{
			SenderID:  senderID,
			SessionID: uuid.NewString(),
		}
	}
	sess.UpdatedAt = time.Now()
	s.sessions[senderID] = sess
	return nil
}

// DeleteExpired removes sessions last touched before olderThan.
func (s *MemoryStore) DeleteExpired(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(olderThan) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
