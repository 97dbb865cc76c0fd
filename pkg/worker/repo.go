package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"workshop/pkg/claims"
)

type MySQLRepo struct {
	DB *sql.DB
}

func NewMySQLRepo(db *sql.DB) *MySQLRepo {
	return &MySQLRepo{DB: db}
}

func (r *MySQLRepo) Create(ctx context.Context, w *Worker) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO workers (id, username, password, role) VALUES (?, ?, ?, ?)",
		w.ID, w.Username, w.Password, string(w.Role),
	)
	return err
}

func (r *MySQLRepo) FindByUsername(ctx context.Context, username string) (*Worker, error) {
	var (
		w    Worker
		role string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, username, password, role FROM workers WHERE username = ?",
		username,
	).Scan(&w.ID, &w.Username, &w.Password, &role)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	w.Role, err = claims.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("worker %s: %w", w.ID, err)
	}
	return &w, nil
}
