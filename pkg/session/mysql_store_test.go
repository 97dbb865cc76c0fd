package session_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/pkg/session"
)

const lifetime = time.Hour

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own :memory: database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);`

	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func insertRaw(t *testing.T, db *sql.DB, id, data string, expiresAt time.Time) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO sessions (id, data, created_at, expires_at) VALUES (?, ?, ?, ?)",
		id, data, time.Now().UTC(), expiresAt.UTC(),
	)
	require.NoError(t, err)
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n))
	return n
}

func TestMySQLStore_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)
	ctx := context.Background()

	err := store.Create(ctx, "abc", session.Data{"lang": "en", "count": 2})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, "en", rec.Data["lang"])
	assert.Equal(t, float64(2), rec.Data["count"])
	assert.WithinDuration(t, time.Now().Add(lifetime), rec.ExpiresAt, 5*time.Second)

	err = store.Create(ctx, "abc", session.Data{})
	assert.ErrorIs(t, err, session.ErrConflict)
	assert.Equal(t, 1, countRows(t, db))
}

func TestMySQLStore_GetMissing(t *testing.T) {
	store := session.NewMySQLStore(setupTestDB(t), lifetime)

	rec, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Nil(t, rec)
}

func TestMySQLStore_GetExpiredDeletesRow(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)
	ctx := context.Background()

	insertRaw(t, db, "abc", `{"k":"v"}`, time.Now().Add(-time.Second))

	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, 0, countRows(t, db))

	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMySQLStore_GetCorruptData(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)

	insertRaw(t, db, "abc", `{not json`, time.Now().Add(time.Hour))

	_, err := store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, 0, countRows(t, db))
}

func TestMySQLStore_UpdateSlidesExpiry(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)
	ctx := context.Background()

	insertRaw(t, db, "abc", `{}`, time.Now().Add(time.Minute))

	err := store.Update(ctx, "abc", session.Data{"step": "paint"})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, session.Data{"step": "paint"}, rec.Data)
	assert.WithinDuration(t, time.Now().Add(lifetime), rec.ExpiresAt, 5*time.Second)
}

func TestMySQLStore_UpdateMissingOrExpired(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)
	ctx := context.Background()

	err := store.Update(ctx, "ghost", session.Data{})
	assert.ErrorIs(t, err, session.ErrNotFound)

	insertRaw(t, db, "dead", `{}`, time.Now().Add(-time.Second))
	err = store.Update(ctx, "dead", session.Data{"x": 1})
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = store.Get(ctx, "dead")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMySQLStore_DeleteIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "abc", nil))
	assert.NoError(t, store.Delete(ctx, "abc"))
	assert.NoError(t, store.Delete(ctx, "abc"))
	assert.Equal(t, 0, countRows(t, db))
}

func TestMySQLStore_DeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)

	insertRaw(t, db, "old1", `{}`, time.Now().Add(-time.Hour))
	insertRaw(t, db, "old2", `{}`, time.Now().Add(-time.Second))
	insertRaw(t, db, "live", `{}`, time.Now().Add(time.Hour))

	n, err := store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, countRows(t, db))
}

func TestMySQLStore_Unavailable(t *testing.T) {
	db := setupTestDB(t)
	store := session.NewMySQLStore(db, lifetime)
	db.Close()

	ctx := context.Background()
	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, session.ErrUnavailable)
	assert.ErrorIs(t, store.Create(ctx, "abc", nil), session.ErrUnavailable)
	assert.ErrorIs(t, store.Update(ctx, "abc", nil), session.ErrUnavailable)
	assert.ErrorIs(t, store.Delete(ctx, "abc"), session.ErrUnavailable)
	_, err = store.DeleteExpired(ctx)
	assert.ErrorIs(t, err, session.ErrUnavailable)
}

// rowsErrDriver accepts every statement but cannot report affected rows.
type rowsErrDriver struct{}

func (rowsErrDriver) Open(string) (driver.Conn, error) { return rowsErrConn{}, nil }

type rowsErrConn struct{}

func (rowsErrConn) Prepare(string) (driver.Stmt, error) { return rowsErrStmt{}, nil }
func (rowsErrConn) Close() error                        { return nil }
func (rowsErrConn) Begin() (driver.Tx, error)           { return nil, errors.New("no transactions") }

type rowsErrStmt struct{}

func (rowsErrStmt) Close() error                               { return nil }
func (rowsErrStmt) NumInput() int                              { return -1 }
func (rowsErrStmt) Exec([]driver.Value) (driver.Result, error) { return driver.ResultNoRows, nil }
func (rowsErrStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("no rows")
}

func init() {
	sql.Register("rowserr", rowsErrDriver{})
}

func TestMySQLStore_RowsAffectedFailure(t *testing.T) {
	db, err := sql.Open("rowserr", "")
	require.NoError(t, err)
	defer db.Close()
	store := session.NewMySQLStore(db, lifetime)

	n, err := store.DeleteExpired(context.Background())
	assert.ErrorIs(t, err, session.ErrUnavailable)
	assert.Zero(t, n)

	assert.ErrorIs(t, store.Update(context.Background(), "abc", session.Data{}), session.ErrUnavailable)
}
