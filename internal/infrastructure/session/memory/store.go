// Package memory keeps studio sessions in process memory. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

const DefaultTTL = 2 * time.Hour

type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  domain.Session
	lastSeen time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(_ context.Context) (domain.Session, error) {
	now := s.now().UTC()
	session := domain.NewSession(uuid.NewString(), now)

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session, lastSeen: now}
	s.mu.Unlock()
	return session, nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return domain.Session{}, err
	}
	return e.session, nil
}

// Update runs fn on the stored session while holding the store lock, so
// updates to one session are applied one at a time.
func (s *Store) Update(ctx context.Context, id string, fn func(*domain.Session)) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return domain.Session{}, err
	}
	fn(&e.session)
	e.session.ID = id
	return e.session, nil
}

// lookup must be called with mu held.
func (s *Store) lookup(id string) (*entry, error) {
	e, ok := s.sessions[id]
	now := s.now()
	if !ok || now.Sub(e.lastSeen) > s.ttl {
		if ok {
			delete(s.sessions, id)
		}
		return nil, domain.WrapError(domain.ErrSessionNotFound, "load session", fmt.Errorf("id=%q", id))
	}
	e.lastSeen = now
	return e, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("sessions_expired", "count", n, "active", s.Len())
			}
		}
	}
}
