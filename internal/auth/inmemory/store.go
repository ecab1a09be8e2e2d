package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/auth"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

// Store keeps sessions in memory. Sessions are lost on restart, which
// signs every browser out.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*auth.Session
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*auth.Session),
		now:      time.Now,
	}
}

// Save implements auth.Store.
func (s *Store) Save(ctx context.Context, session *auth.Session) error {
	if session.Token == "" {
		return fmt.Errorf("session token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessionCopy := *session
	s.sessions[session.Token] = &sessionCopy
	return nil
}

// Get implements auth.Store. Expired sessions are dropped on read.
func (s *Store) Get(ctx context.Context, token string) (*auth.Session, error) {
	s.mu.RLock()
	session, exists := s.sessions[token]
	s.mu.RUnlock()

	if !exists {
		return nil, auth.ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		_ = s.Delete(ctx, token)
		return nil, auth.ErrSessionNotFound
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

// Delete implements auth.Store.
func (s *Store) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log := logger.FromContext(ctx)
					log.Debug().Int("sessions", n).Msg("Swept expired sessions")
				}
			}
		}
	}()
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ auth.Store = (*Store)(nil)
