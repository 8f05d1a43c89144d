// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/todobot/internal/domain"
)

// Repository defines the interface for persisting users, todos and conversation history.
// Every todo and conversation method is scoped by the owning user ID.
type Repository interface {
	// CreateUser inserts a new user. A duplicate name yields a *domain.ConflictError.
	CreateUser(ctx context.Context, name string, now time.Time) (*domain.User, error)

	// GetUser retrieves a user by ID. Returns nil, nil when no row matches.
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// GetUserByName retrieves a user by unique name. Returns nil, nil when no row matches.
	GetUserByName(ctx context.Context, name string) (*domain.User, error)

	// ListUsers returns all users ordered by name.
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// UpdateLastActive sets last_active for a user.
	UpdateLastActive(ctx context.Context, userID int64, at time.Time) error

	// CreateTodo inserts a pending todo for the user.
	CreateTodo(ctx context.Context, userID int64, task string, now time.Time) (*domain.Todo, error)

	// ListTodos returns the user's todos, newest first.
	ListTodos(ctx context.Context, userID int64) ([]*domain.Todo, error)

	// CompleteTodo marks a pending todo owned by userID as completed.
	// It reports false when the todo is missing, owned by someone else, or already completed.
	CompleteTodo(ctx context.Context, userID, todoID int64, at time.Time) (bool, error)

	// DeleteTodo removes a todo owned by userID. It reports false when nothing was deleted.
	DeleteTodo(ctx context.Context, userID, todoID int64) (bool, error)

	// AppendConversation stores an entry and sets its ID.
	AppendConversation(ctx context.Context, entry *domain.ConversationEntry) error

	// RecentConversation returns up to limit entries for the user, newest first.
	RecentConversation(ctx context.Context, userID int64, limit int) ([]*domain.ConversationEntry, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
