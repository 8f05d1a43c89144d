package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/ashureev/todobot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

var _ Repository = (*SQLiteStore)(nil)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// openDB opens the database file with WAL, a busy timeout and foreign keys enabled
// on every pooled connection.
func openDB(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewSQLite creates a new SQLite-backed repository and migrates the schema up.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateDB(db, Up); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateUser inserts a new user with created_at and last_active set to now.
func (s *SQLiteStore) CreateUser(ctx context.Context, name string, now time.Time) (*domain.User, error) {
	query := `INSERT INTO users (name, created_at, last_active) VALUES (?, ?, ?)`

	var id int64
	err := shared.RetryOnConflict(ctx, s.retry, "create_user", func() error {
		result, err := s.db.ExecContext(ctx, query, name, now.UnixNano(), now.UnixNano())
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return nil, &domain.ConflictError{Resource: "user", Field: "name", Value: name}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &domain.User{
		ID:         id,
		Name:       name,
		CreatedAt:  fromUnixNano(now.UnixNano()),
		LastActive: fromUnixNano(now.UnixNano()),
	}, nil
}

// GetUser retrieves a user by their ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := `SELECT id, name, created_at, last_active FROM users WHERE id = ?`
	return s.getUser(ctx, query, userID)
}

// GetUserByName retrieves a user by name.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*domain.User, error) {
	query := `SELECT id, name, created_at, last_active FROM users WHERE name = ?`
	return s.getUser(ctx, query, name)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by name.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT id, name, created_at, last_active FROM users ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer closeRows(rows, "users")

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateLastActive updates the last_active timestamp for a user.
func (s *SQLiteStore) UpdateLastActive(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_active = ? WHERE id = ?`

	var rows int64
	err := shared.RetryOnConflict(ctx, s.retry, "update_last_active", func() error {
		result, err := s.db.ExecContext(ctx, query, at.UnixNano(), userID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update last_active: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastActive affected 0 rows", "user_id", userID)
	}
	return nil
}

// CreateTodo inserts a pending todo.
func (s *SQLiteStore) CreateTodo(ctx context.Context, userID int64, task string, now time.Time) (*domain.Todo, error) {
	query := `INSERT INTO todos (user_id, task, completed, created_at) VALUES (?, ?, 0, ?)`

	var id int64
	err := shared.RetryOnConflict(ctx, s.retry, "create_todo", func() error {
		result, err := s.db.ExecContext(ctx, query, userID, task, now.UnixNano())
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}

	return &domain.Todo{
		ID:        id,
		UserID:    userID,
		Task:      task,
		CreatedAt: fromUnixNano(now.UnixNano()),
	}, nil
}

// ListTodos returns the user's todos, newest first.
func (s *SQLiteStore) ListTodos(ctx context.Context, userID int64) ([]*domain.Todo, error) {
	query := `
		SELECT id, user_id, task, completed, created_at, completed_at
		FROM todos WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer closeRows(rows, "todos")

	todos := make([]*domain.Todo, 0)
	for rows.Next() {
		var todo domain.Todo
		var createdAt int64
		var completedAt sql.NullInt64

		if err := rows.Scan(
			&todo.ID, &todo.UserID, &todo.Task, &todo.Completed,
			&createdAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan todo row: %w", err)
		}

		todo.CreatedAt = fromUnixNano(createdAt)
		if completedAt.Valid {
			ts := fromUnixNano(completedAt.Int64)
			todo.CompletedAt = &ts
		}
		todos = append(todos, &todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return todos, nil
}

// CompleteTodo marks a pending todo as completed in a single conditional update.
func (s *SQLiteStore) CompleteTodo(ctx context.Context, userID, todoID int64, at time.Time) (bool, error) {
	query := `
		UPDATE todos SET completed = 1, completed_at = ?
		WHERE id = ? AND user_id = ? AND completed = 0`

	rows, err := s.execAffected(ctx, "complete_todo", query, at.UnixNano(), todoID, userID)
	if err != nil {
		return false, fmt.Errorf("complete todo: %w", err)
	}
	return rows > 0, nil
}

// DeleteTodo removes a todo owned by the user.
func (s *SQLiteStore) DeleteTodo(ctx context.Context, userID, todoID int64) (bool, error) {
	query := `DELETE FROM todos WHERE id = ? AND user_id = ?`

	rows, err := s.execAffected(ctx, "delete_todo", query, todoID, userID)
	if err != nil {
		return false, fmt.Errorf("delete todo: %w", err)
	}
	return rows > 0, nil
}

// AppendConversation stores a conversation entry and assigns its ID.
func (s *SQLiteStore) AppendConversation(ctx context.Context, entry *domain.ConversationEntry) error {
	query := `INSERT INTO conversation_history (user_id, role, content, timestamp) VALUES (?, ?, ?, ?)`

	err := shared.RetryOnConflict(ctx, s.retry, "append_conversation", func() error {
		result, err := s.db.ExecContext(ctx, query,
			entry.UserID, string(entry.Role), entry.Content, entry.Timestamp.UnixNano(),
		)
		if err != nil {
			return err
		}
		entry.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return fmt.Errorf("insert conversation entry: %w", err)
	}
	return nil
}

// RecentConversation returns up to limit entries, newest first.
func (s *SQLiteStore) RecentConversation(ctx context.Context, userID int64, limit int) ([]*domain.ConversationEntry, error) {
	query := `
		SELECT id, user_id, role, content, timestamp
		FROM conversation_history WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation history: %w", err)
	}
	defer closeRows(rows, "conversation history")

	entries := make([]*domain.ConversationEntry, 0, limit)
	for rows.Next() {
		var entry domain.ConversationEntry
		var role string
		var ts int64

		if err := rows.Scan(&entry.ID, &entry.UserID, &role, &entry.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		if entry.Role, err = domain.ParseRole(role); err != nil {
			return nil, fmt.Errorf("conversation entry %d: %w", entry.ID, err)
		}
		entry.Timestamp = fromUnixNano(ts)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation history: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) execAffected(ctx context.Context, op, query string, args ...any) (int64, error) {
	var rows int64
	err := shared.RetryOnConflict(ctx, s.retry, op, func() error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	return rows, err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var createdAt, lastActive int64
	if err := row.Scan(&user.ID, &user.Name, &createdAt, &lastActive); err != nil {
		return nil, err
	}
	user.CreatedAt = fromUnixNano(createdAt)
	user.LastActive = fromUnixNano(lastActive)
	return &user, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
