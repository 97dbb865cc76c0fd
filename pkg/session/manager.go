package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultPersistTimeout = 5 * time.Second

type Config struct {
	CookieName     string
	Lifetime       time.Duration
	Production     bool
	PersistTimeout time.Duration
}

// Manager attaches a session to every request passing through Middleware.
//
// Concurrent requests carrying the same session id each persist their own
// copy when they finish; whichever Update reaches the store last wins. There
// is no merge and no optimistic locking.
type Manager struct {
	store  Store
	cookie CookieOptions
	cfg    Config
	logger *slog.Logger

	pending sync.WaitGroup
}

func NewManager(store Store, cfg Config, logger *slog.Logger) *Manager {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	return &Manager{
		store: store,
		cookie: CookieOptions{
			Name:       cfg.CookieName,
			MaxAge:     cfg.Lifetime,
			Production: cfg.Production,
		},
		cfg:    cfg,
		logger: logger,
	}
}

func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.resolve(w, r)

		// runs on normal return, on panic and when the client has gone away
		defer m.finish(r.Context(), sess)

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// resolve adopts the session named by the cookie or creates a new one. Store
// failures degrade to an ephemeral session instead of failing the request.
func (m *Manager) resolve(w http.ResponseWriter, r *http.Request) *Session {
	ctx := r.Context()

	if c, err := r.Cookie(m.cookie.Name); err == nil && ValidID(c.Value) {
		rec, err := m.store.Get(ctx, c.Value)
		switch {
		case err == nil:
			return newSession(c.Value, rec.Data)
		case errors.Is(err, ErrNotFound):
			m.logger.Debug("session not found, issuing new one", "session_id", shortID(c.Value))
		default:
			m.logger.Error("session lookup failed", "session_id", shortID(c.Value), "error", err)
			return newEphemeral()
		}
	}

	id, err := NewID()
	if err != nil {
		m.logger.Error("session id generation failed", "error", err)
		return newEphemeral()
	}
	if err := m.store.Create(ctx, id, Data{}); err != nil {
		m.logger.Error("session create failed", "session_id", shortID(id), "error", err)
		return newEphemeral()
	}

	m.cookie.Set(w, id)
	return newSession(id, nil)
}

// finish snapshots the session and writes it in the background, so the
// response completes without waiting on the store.
func (m *Manager) finish(ctx context.Context, sess *Session) {
	id, ok := sess.persistable()
	if !ok {
		return
	}
	values := sess.Values()

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.persist(context.WithoutCancel(ctx), id, values)
	}()
}

func (m *Manager) persist(ctx context.Context, id string, values Data) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.PersistTimeout)
	defer cancel()

	if err := m.store.Update(ctx, id, values); err != nil {
		m.logger.Warn("session persist failed", "session_id", shortID(id), "error", err)
	}
}

// Wait blocks until every persist started so far has finished. Call it after
// the HTTP server has shut down.
func (m *Manager) Wait() {
	m.pending.Wait()
}

// Rotate moves the request's session data to a fresh id and replaces the
// cookie. Call it before writing the response body.
func (m *Manager) Rotate(w http.ResponseWriter, r *http.Request) error {
	sess := FromContext(r.Context())
	if sess == nil {
		return ErrNoSession
	}
	if sess.Ephemeral() {
		return ErrUnavailable
	}

	newID, err := NewID()
	if err != nil {
		return err
	}
	if err := m.store.Create(r.Context(), newID, sess.Values()); err != nil {
		return err
	}

	oldID := sess.ID()
	if err := m.store.Delete(r.Context(), oldID); err != nil {
		m.logger.Warn("old session delete failed after rotate", "session_id", shortID(oldID), "error", err)
	}

	sess.setID(newID)
	m.cookie.Set(w, newID)
	return nil
}

// Destroy deletes the request's session row and clears the cookie. Nothing is
// persisted for this request afterwards.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	sess := FromContext(r.Context())
	if sess == nil {
		return ErrNoSession
	}

	sess.markDestroyed()
	m.cookie.Clear(w)

	if id, ephemeral := sess.ID(), sess.Ephemeral(); id != "" && !ephemeral {
		return m.store.Delete(r.Context(), id)
	}
	return nil
}
