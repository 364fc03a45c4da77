package services

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// SessionFactory builds a session for a client session id.
type SessionFactory func(id string) *SearchSession

// SessionRegistry keeps one SearchSession per client so that a client's new request
// supersedes its own in-flight search. Idle clients are evicted after ttl.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *SearchSession]
	factory  SessionFactory
}

// NewSessionRegistry creates a registry holding at most capacity sessions
func NewSessionRegistry(capacity int, ttl time.Duration, factory SessionFactory) *SessionRegistry {
	if capacity <= 0 {
		capacity = 1000
	}
	return &SessionRegistry{
		sessions: expirable.NewLRU[string, *SearchSession](capacity, nil, ttl),
		factory:  factory,
	}
}

// Get returns the session for id, creating it on first use. An empty id always
// gets a fresh, unregistered session.
func (r *SessionRegistry) Get(id string) *SearchSession {
	if id == "" {
		return r.factory("")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions.Get(id); ok {
		return s
	}
	s := r.factory(id)
	r.sessions.Add(id, s)
	return s
}

// State returns the state of a registered session, or false when unknown.
func (r *SessionRegistry) State(id string) (entities.SessionState, bool) {
	s, ok := r.sessions.Peek(id)
	if !ok {
		return "", false
	}
	return s.State(), true
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}
