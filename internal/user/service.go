// Package user manages TodoBot user registration and lookup.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/ashureev/todobot/internal/store"
)

// Service wraps the repository with user-level rules.
type Service struct {
	repo   store.Repository
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a user service.
func NewService(repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, now: time.Now, logger: logger.With("component", "user")}
}

// Register creates a user with a unique, non-empty name.
func (s *Service) Register(ctx context.Context, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "is required"}
	}

	existing, err := s.repo.GetUserByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup user by name: %w", err)
	}
	if existing != nil {
		return nil, &domain.ConflictError{Resource: "user", Field: "name", Value: name}
	}

	u, err := s.repo.CreateUser(ctx, name, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered", "user_id", u.ID, "name", u.Name)
	return u, nil
}

// List returns every user ordered by name.
func (s *Service) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// Get returns the user or a *domain.NotFoundError.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, &domain.NotFoundError{Resource: "user", ID: userID}
	}
	return u, nil
}

// Touch records chat activity for the user.
func (s *Service) Touch(ctx context.Context, userID int64) error {
	return s.repo.UpdateLastActive(ctx, userID, s.now())
}
