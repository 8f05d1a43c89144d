// Package todo implements user-scoped todo operations shared by the REST API and the agent.
package todo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/ashureev/todobot/internal/events"
	"github.com/ashureev/todobot/internal/store"
	"golang.org/x/sync/singleflight"
)

// Cache is a per-user read-through cache for todo listings.
type Cache interface {
	Get(ctx context.Context, userID int64) ([]*domain.Todo, bool, error)
	Set(ctx context.Context, userID int64, todos []*domain.Todo) error
	Invalidate(ctx context.Context, userID int64) error
}

// listTimeout bounds a shared list query, which runs detached from any one caller.
const listTimeout = 10 * time.Second

// Publisher receives an event after every successful mutation.
type Publisher interface {
	Publish(ctx context.Context, ev events.TodoEvent) error
}

// Service provides todo operations. Every method takes the acting user ID explicitly.
type Service struct {
	repo      store.Repository
	cache     Cache
	publisher Publisher
	group     singleflight.Group
	now       func() time.Time
	logger    *slog.Logger

	// gens counts mutations per user. List flights are keyed by generation so
	// a read that started before a write is never shared with later callers.
	mu   sync.Mutex
	gens map[int64]uint64
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables list caching.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher enables change events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a todo service.
func NewService(repo store.Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		now:    time.Now,
		logger: logger.With("component", "todo"),
		gens:   make(map[int64]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add creates a pending todo.
func (s *Service) Add(ctx context.Context, userID int64, task string) (*domain.Todo, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, &domain.ValidationError{Field: "task", Reason: "is required"}
	}

	t, err := s.repo.CreateTodo(ctx, userID, task, s.now())
	if err != nil {
		return nil, err
	}
	s.changed(ctx, events.NewTodoEvent(events.TodoCreated, userID, t.ID, t.Task, t.CreatedAt))
	return t, nil
}

// List returns the user's todos, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*domain.Todo, error) {
	if s.cache != nil {
		todos, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("Todo cache read failed", "user_id", userID, "error", err)
		} else if ok {
			return todos, nil
		}
	}

	gen := s.generation(userID)
	key := strconv.FormatInt(userID, 10) + ":" + strconv.FormatUint(gen, 10)
	ch := s.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
		defer cancel()

		todos, err := s.repo.ListTodos(rctx, userID)
		if err != nil {
			return nil, err
		}
		s.fill(rctx, userID, gen, todos)
		return todos, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("list todos: %w", res.Err)
		}
		return res.Val.([]*domain.Todo), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("list todos: %w", ctx.Err())
	}
}

func (s *Service) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// fill caches a listing read at generation gen. The lock is held across Set so
// a concurrent mutation either invalidates the entry afterwards or makes fill skip it.
func (s *Service) fill(ctx context.Context, userID int64, gen uint64, todos []*domain.Todo) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] != gen {
		return
	}
	if err := s.cache.Set(ctx, userID, todos); err != nil {
		s.logger.Warn("Todo cache write failed", "user_id", userID, "error", err)
	}
}

// Complete marks a pending todo as done. It reports false if the todo is missing,
// belongs to another user, or was already completed.
func (s *Service) Complete(ctx context.Context, userID, todoID int64) (bool, error) {
	now := s.now()
	ok, err := s.repo.CompleteTodo(ctx, userID, todoID, now)
	if err != nil || !ok {
		return ok, err
	}
	s.changed(ctx, events.NewTodoEvent(events.TodoCompleted, userID, todoID, "", now))
	return true, nil
}

// Remove deletes a todo. It reports false if nothing owned by the user matched.
func (s *Service) Remove(ctx context.Context, userID, todoID int64) (bool, error) {
	ok, err := s.repo.DeleteTodo(ctx, userID, todoID)
	if err != nil || !ok {
		return ok, err
	}
	s.changed(ctx, events.NewTodoEvent(events.TodoDeleted, userID, todoID, "", s.now()))
	return true, nil
}

// Stats counts the user's todos. Derived from List so total == completed + pending.
func (s *Service) Stats(ctx context.Context, userID int64) (domain.TodoStats, error) {
	todos, err := s.List(ctx, userID)
	if err != nil {
		return domain.TodoStats{}, err
	}
	return domain.StatsOf(todos), nil
}

// changed moves later readers to a fresh generation, invalidates the cache and
// publishes the event. Failures are logged only;
// the mutation has already committed.
func (s *Service) changed(ctx context.Context, ev events.TodoEvent) {
	s.mu.Lock()
	s.gens[ev.UserID]++
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ev.UserID); err != nil {
			s.logger.Warn("Todo cache invalidation failed", "user_id", ev.UserID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("Todo event publish failed", "user_id", ev.UserID, "type", ev.Type, "error", err)
		}
	}
}
