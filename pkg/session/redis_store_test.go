package session_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/pkg/session"
)

func newRedisStore(t *testing.T) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return session.NewRedisStore(rdb, lifetime), mr
}

func TestRedisStore_Lifecycle(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "abc", session.Data{"lang": "de"}))
	assert.ErrorIs(t, store.Create(ctx, "abc", nil), session.ErrConflict)
	assert.Equal(t, lifetime, mr.TTL("session:abc"))

	rec, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, session.Data{"lang": "de"}, rec.Data)

	mr.FastForward(30 * time.Minute)
	require.NoError(t, store.Update(ctx, "abc", session.Data{"lang": "fr"}))
	assert.Equal(t, lifetime, mr.TTL("session:abc"))

	rec, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "fr", rec.Data["lang"])

	require.NoError(t, store.Delete(ctx, "abc"))
	require.NoError(t, store.Delete(ctx, "abc"))

	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "abc", nil), session.ErrNotFound)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "abc", nil))
	mr.FastForward(lifetime + time.Second)

	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisStore_GetExpiredDeletesKey(t *testing.T) {
	store, mr := newRedisStore(t)

	raw, err := json.Marshal(map[string]any{
		"data":       map[string]any{"k": "v"},
		"expires_at": time.Now().Add(-time.Second),
	})
	require.NoError(t, err)
	require.NoError(t, mr.Set("session:abc", string(raw)))

	_, err = store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.False(t, mr.Exists("session:abc"))
}

func TestRedisStore_GetCorruptDataDeletesKey(t *testing.T) {
	store, mr := newRedisStore(t)

	for key, data := range map[string]any{
		"session:list":   []int{1, 2},
		"session:string": "not an object",
	} {
		raw, err := json.Marshal(map[string]any{
			"data":       data,
			"expires_at": time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		require.NoError(t, mr.Set(key, string(raw)))
	}
	require.NoError(t, mr.Set("session:garbage", "{"))

	for _, id := range []string{"list", "string", "garbage"} {
		_, err := store.Get(context.Background(), id)
		assert.ErrorIs(t, err, session.ErrNotFound, id)
		assert.False(t, mr.Exists("session:"+id), id)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	store := session.NewRedisStore(rdb, lifetime)
	mr.Close()

	ctx := context.Background()
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, session.ErrUnavailable)
	assert.ErrorIs(t, store.Create(ctx, "abc", nil), session.ErrUnavailable)
	assert.ErrorIs(t, store.Update(ctx, "abc", nil), session.ErrUnavailable)
	assert.ErrorIs(t, store.Delete(ctx, "abc"), session.ErrUnavailable)
}
