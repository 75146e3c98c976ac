package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/money"
)

// Store keeps the live browsing sessions. Sessions never share state.
type Store struct {
	factory BackendFactory
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(factory BackendFactory, opts Options) *Store {
	if factory == nil {
		panic("service.NewStore: nil backend factory")
	}
	if opts.Currency == "" {
		opts.Currency = money.DefaultCurrency
	}
	return &Store{
		factory:  factory,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

func (s *Store) Create(cookie string) *Session {
	sess := newSession(uuid.NewString(), cookie, s.factory, s.opts)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, apperr.ErrSessionNotFound)
	}
	sess.Touch()
	return sess, nil
}

// GetOrCreate returns the session for id, or a new one when id is unknown.
// The reported bool is true for a new session.
func (s *Store) GetOrCreate(id, cookie string) (*Session, bool) {
	if id != "" {
		if sess, err := s.Get(id); err == nil {
			sess.SetCookie(cookie)
			return sess, false
		}
	}
	return s.Create(cookie), true
}

// Remove closes the session and forgets it.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// it closed.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
	}
	if len(idle) > 0 {
		log.Printf("swept %d idle sessions", len(idle))
	}
	return len(idle)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every session.
func (s *Store) Close() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range all {
		sess.Close()
	}
}
