package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"clinic-agent/internal/domain"
)

// MemorySessionStore keeps sessions in process memory. It backs the
// interactive CLI, where a session lives only as long as the process.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

// Load returns the stored session, or a fresh one when id is unknown.
func (s *MemorySessionStore) Load(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.NewSession(id), nil
	}
	return copySession(sess), nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess domain.Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("repository: session id is required")
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.sessions[sess.ID] = copySession(sess)
	s.mu.Unlock()
	return nil
}

func copySession(sess domain.Session) domain.Session {
	out := sess
	out.State = sess.State.Clone()
	out.History = append([]domain.ChatMessage(nil), sess.History...)
	return out
}
