package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/todobot/internal/conversation"
	"github.com/ashureev/todobot/internal/domain"
	"github.com/go-chi/chi/v5"
)

// UserService is the user surface used by the API.
type UserService interface {
	Register(ctx context.Context, name string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, userID int64) (*domain.User, error)
}

// TodoService is the todo surface used by the API.
type TodoService interface {
	Add(ctx context.Context, userID int64, task string) (*domain.Todo, error)
	List(ctx context.Context, userID int64) ([]*domain.Todo, error)
	Complete(ctx context.Context, userID, todoID int64) (bool, error)
	Remove(ctx context.Context, userID, todoID int64) (bool, error)
	Stats(ctx context.Context, userID int64) (domain.TodoStats, error)
}

// ConversationService reads the chat log.
type ConversationService interface {
	History(ctx context.Context, userID int64, limit int) ([]*domain.ConversationEntry, error)
}

// Handler serves the user, todo and conversation routes.
type Handler struct {
	users         UserService
	todos         TodoService
	conversations ConversationService
	logger        *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(users UserService, todos TodoService, conversations ConversationService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{users: users, todos: todos, conversations: conversations, logger: logger}
}

// RegisterRoutes mounts the REST routes on r, which is expected to be the /api sub-router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users", h.CreateUser)
	r.Get("/users", h.ListUsers)
	r.Get("/users/{id}", h.GetUser)

	r.Post("/users/{id}/todos", h.CreateTodo)
	r.Get("/users/{id}/todos", h.ListTodos)
	r.Get("/users/{id}/todos/stats", h.TodoStats)
	r.Put("/users/{id}/todos/{todo_id}/complete", h.CompleteTodo)
	r.Delete("/users/{id}/todos/{todo_id}", h.DeleteTodo)

	r.Get("/users/{id}/conversations", h.ListConversations)
}

type createUserRequest struct {
	Name string `json:"name"`
}

type createTodoRequest struct {
	Task string `json:"task"`
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := DecodeJSON(w, r, maxJSONBodySize, &req); err != nil {
		WriteDecodeError(w, err)
		return
	}

	u, err := h.users.Register(r.Context(), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusCreated, u)
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, users)
}

// GetUser handles GET /users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, u)
}

// CreateTodo handles POST /users/{id}/todos.
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req createTodoRequest
	if err := DecodeJSON(w, r, maxJSONBodySize, &req); err != nil {
		WriteDecodeError(w, err)
		return
	}

	t, err := h.todos.Add(r.Context(), u.ID, req.Task)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusCreated, t)
}

// ListTodos handles GET /users/{id}/todos.
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	todos, err := h.todos.List(r.Context(), u.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, todos)
}

// TodoStats handles GET /users/{id}/todos/stats.
func (h *Handler) TodoStats(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.todos.Stats(r.Context(), u.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// CompleteTodo handles PUT /users/{id}/todos/{todo_id}/complete.
func (h *Handler) CompleteTodo(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	todoID, err := PathID(r, "todo_id")
	if err != nil {
		WriteError(w, err)
		return
	}

	done, err := h.todos.Complete(r.Context(), u.ID, todoID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !done {
		Error(w, http.StatusNotFound, "Todo not found or already completed")
		return
	}
	Message(w, http.StatusOK, "Todo marked as completed")
}

// DeleteTodo handles DELETE /users/{id}/todos/{todo_id}.
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	todoID, err := PathID(r, "todo_id")
	if err != nil {
		WriteError(w, err)
		return
	}

	removed, err := h.todos.Remove(r.Context(), u.ID, todoID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !removed {
		Error(w, http.StatusNotFound, "Todo not found")
		return
	}
	Message(w, http.StatusOK, "Todo deleted")
}

// ListConversations handles GET /users/{id}/conversations?limit=N.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	limit := conversation.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > conversation.MaxLimit {
			Error(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(conversation.MaxLimit))
			return
		}
		limit = n
	}

	entries, err := h.conversations.History(r.Context(), u.ID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, entries)
}

// requireUser resolves {id} or writes the error response.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, err := PathID(r, "id")
	if err != nil {
		WriteError(w, err)
		return nil, false
	}
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return nil, false
	}
	return u, true
}
