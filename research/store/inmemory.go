// Package store provides session snapshot stores backing the
// research.SessionStore interface: an in-memory map for tests and
// single-process use, plus Redis, MongoDB and PostgreSQL backends.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/research"
)

// Memory keeps session snapshots in a process-local map. Snapshots are
// cloned on the way in and out, so callers never share memory with the
// store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*research.Session
}

// NewMemory returns an empty in-memory session store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*research.Session),
	}
}

// Save stores a snapshot of the session, replacing any previous one.
func (s *Memory) Save(_ context.Context, session *research.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session must have an ID", errs.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Load returns a copy of the stored session.
func (s *Memory) Load(_ context.Context, id string) (*research.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, errs.ErrSessionNotFound)
	}
	return session.Clone(), nil
}

// List returns all stored session IDs, newest first.
func (s *Memory) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.sessions[ids[i]], s.sessions[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

// Delete removes a stored session. Deleting an unknown ID is not an error.
func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Count returns the number of stored sessions.
func (s *Memory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
