package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

// MySQLStore keeps sessions in the `sessions` table. Queries stick to `?`
// placeholders and plain DATETIME comparisons so the same code runs on SQLite.
type MySQLStore struct {
	DB       *sql.DB
	lifetime time.Duration
}

func NewMySQLStore(db *sql.DB, lifetime time.Duration) *MySQLStore {
	return &MySQLStore{DB: db, lifetime: lifetime}
}

func (s *MySQLStore) Get(ctx context.Context, id string) (*Record, error) {
	var (
		raw       []byte
		expiresAt time.Time
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT data, expires_at FROM sessions WHERE id = ?
	`, id).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	now := time.Now().UTC()
	if !expiresAt.After(now) {
		if _, err := s.DB.ExecContext(ctx, `
			DELETE FROM sessions WHERE id = ? AND expires_at <= ?
		`, id, now); err != nil {
			return nil, unavailable(err)
		}
		return nil, ErrNotFound
	}

	data, err := decodeData(raw)
	if err != nil {
		if _, delErr := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); delErr != nil {
			return nil, unavailable(delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return &Record{ID: id, Data: data, ExpiresAt: expiresAt}, nil
}

func (s *MySQLStore) Create(ctx context.Context, id string, data Data) error {
	raw, err := encodeData(data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO sessions (id, data, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, id, string(raw), now, now.Add(s.lifetime))
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return ErrConflict
	}
	if exists, exErr := s.exists(ctx, id); exErr == nil && exists {
		return ErrConflict
	}
	return unavailable(err)
}

func (s *MySQLStore) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sessions WHERE id = ?)
	`, id).Scan(&exists)
	return exists, err
}

// Update slides expires_at forward. Rows already past expiry are not revived.
func (s *MySQLStore) Update(ctx context.Context, id string, data Data) error {
	raw, err := encodeData(data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.DB.ExecContext(ctx, `
		UPDATE sessions SET data = ?, expires_at = ?
		WHERE id = ? AND expires_at > ?
	`, string(raw), now.Add(s.lifetime), id, now)
	if err != nil {
		return unavailable(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MySQLStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at <= ?
	`, time.Now().UTC())
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}
