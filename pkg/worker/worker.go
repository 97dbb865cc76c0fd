package worker

import (
	"context"
	"errors"

	"workshop/pkg/claims"
)

var (
	ErrNotFound           = errors.New("worker not found")
	ErrExists             = errors.New("worker already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Worker struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Password string      `json:"-"`
	Role     claims.Role `json:"role"`
}

func (w *Worker) Identity() claims.Identity {
	return claims.Identity{UserID: w.ID, Role: w.Role}
}

type Repository interface {
	Create(ctx context.Context, w *Worker) error
	FindByUsername(ctx context.Context, username string) (*Worker, error)
}
