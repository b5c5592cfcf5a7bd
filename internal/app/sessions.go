/**
 * @description
 * This file contains the in-memory funnel session registry. A funnel is owned by
 * exactly one client session and has no persistence across reloads, so sessions
 * live in process memory, keyed by UUID, and are swept once they outlive the
 * configured TTL.
 */

package app

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("funnel session not found")

// SessionStore holds the live funnel sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Funnel
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a registry whose sessions expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Funnel),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
}

// Create registers a new funnel at the registration step.
func (s *SessionStore) Create() *Funnel {
	f := NewFunnel()
	s.mu.Lock()
	s.sessions[f.ID] = f
	s.mu.Unlock()
	return f
}

// Get looks up a live session.
func (s *SessionStore) Get(id uuid.UUID) (*Funnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return f, nil
}

// StartJanitor sweeps expired sessions until Stop is called.
func (s *SessionStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the janitor goroutine.
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SessionStore) sweep() {
	cutoff := time.Now().UTC().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, f := range s.sessions {
		if f.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("level=info component=session_store msg=\"expired sessions swept\" removed=%d live=%d", removed, len(s.sessions))
	}
}
