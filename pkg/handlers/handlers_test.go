package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"workshop/pkg/session"
)

const cookieName = "workshop_sid"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupSessions(t *testing.T) (*session.Manager, *session.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := session.NewRedisStore(client, time.Hour)
	return session.NewManager(store, session.Config{CookieName: cookieName, Lifetime: time.Hour}, discard), store
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == cookieName {
			require.Nil(t, found, "session cookie set twice")
			found = c
		}
	}
	require.NotNil(t, found, "no session cookie")
	return found
}
