package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"workshop/pkg/generator"
)

// IDLength alphanumeric characters give a little over 256 bits of entropy.
const IDLength = 43

var (
	ErrNotFound    = errors.New("session not found")
	ErrConflict    = errors.New("session already exists")
	ErrUnavailable = errors.New("session store unavailable")
	ErrNoSession   = errors.New("no session in request context")
)

// Data is the JSON-serialisable payload of a session.
type Data map[string]any

type Record struct {
	ID        string
	Data      Data
	ExpiresAt time.Time
}

// Store persists session rows. Implementations own expiry: Get deletes and
// reports ErrNotFound for a row whose expiry has passed, and Update slides the
// expiry forward. I/O failures are wrapped with ErrUnavailable.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Create(ctx context.Context, id string, data Data) error
	Update(ctx context.Context, id string, data Data) error
	Delete(ctx context.Context, id string) error
}

// ExpiredDeleter is implemented by stores that need explicit cleanup of dead rows.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func NewID() (string, error) {
	id, err := generator.GenerateRandomID(IDLength)
	if err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}
	return id, nil
}

func ValidID(id string) bool {
	return generator.IsRandomID(id, IDLength)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Session is the request-scoped view of a stored session.
type Session struct {
	mu        sync.RWMutex
	id        string
	values    Data
	ephemeral bool
	destroyed bool
}

func newSession(id string, values Data) *Session {
	if values == nil {
		values = Data{}
	}
	return &Session{id: id, values: values}
}

// newEphemeral is used when the store cannot be reached; it lives for one
// request and is never persisted.
func newEphemeral() *Session {
	return &Session{values: Data{}, ephemeral: true}
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) Ephemeral() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ephemeral
}

func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Values returns a copy of the session data.
func (s *Session) Values() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func (s *Session) setID(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

func (s *Session) markDestroyed() {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
}

// persistable reports the id to write, or false when nothing should be written.
func (s *Session) persistable() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ephemeral || s.destroyed || s.id == "" {
		return "", false
	}
	return s.id, true
}

type sessionContextKey struct{}

func withSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the session attached by Manager.Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey{}).(*Session)
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
