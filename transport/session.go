package transport

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/oklog/ulid/v2"
)

// SessionStore keeps the live SSE sessions.
type SessionStore interface {
	// Issue stores the session under a new ID and returns the ID.
	Issue(ctx context.Context, session *Session) (sessionID string, err error)
	// Load returns the session stored under sessionID, or ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) (*Session, error)
	// Delete removes the session from the store.
	Delete(ctx context.Context, sessionID string) error
	// All iterates over the stored sessions.
	All(ctx context.Context) iter.Seq2[string, *Session]
}

var _ SessionStore = (*InMemorySessionStore)(nil)

// InMemorySessionStore is an in-memory implementation of SessionStore
//
// NOTE: It will only work properly if the server is running on a single process.
type InMemorySessionStore struct {
	_        struct{}
	sessions sync.Map
}

func (s *InMemorySessionStore) Issue(_ context.Context, session *Session) (string, error) {
	id := ulid.Make().String()
	if _, loaded := s.sessions.LoadOrStore(id, session); loaded {
		return "", fmt.Errorf("session '%s' already exists", id)
	}
	return id, nil
}

func (s *InMemorySessionStore) Load(_ context.Context, sessionID string) (*Session, error) {
	v, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return v.(*Session), nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.sessions.Delete(sessionID)
	return nil
}

func (s *InMemorySessionStore) All(_ context.Context) iter.Seq2[string, *Session] {
	return func(yield func(string, *Session) bool) {
		s.sessions.Range(func(k, v any) bool {
			return yield(k.(string), v.(*Session))
		})
	}
}
