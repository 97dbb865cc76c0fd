package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"workshop/pkg/claims"
	"workshop/pkg/generator"
)

const idLength = 24

type ServiceInterface interface {
	Register(ctx context.Context, username, password string) (*Worker, error)
	Login(ctx context.Context, username, password string) (*Worker, error)
}

type Service struct {
	Repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{Repo: repo}
}

// Register creates a worker-role account. Elevated roles are granted out of band.
func (s *Service) Register(ctx context.Context, username, password string) (*Worker, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	exist, err := s.Repo.FindByUsername(ctx, username)
	if exist != nil && err == nil {
		return nil, ErrExists
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password error: %w", err)
	}

	workerID, err := generator.GenerateRandomID(idLength)
	if err != nil {
		return nil, fmt.Errorf("worker id gen error: %w", err)
	}

	w := &Worker{
		ID:       workerID,
		Username: username,
		Password: string(hashedPassword),
		Role:     claims.RoleWorker,
	}
	if err := s.Repo.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*Worker, error) {
	w, err := s.Repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(w.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return w, nil
}
