package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/todobot/internal/api"
	"github.com/ashureev/todobot/internal/domain"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// Chatter runs a chat turn.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// UserDirectory resolves the chatting user and records activity.
type UserDirectory interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
	Touch(ctx context.Context, userID int64) error
}

// Handler serves the chat endpoints.
type Handler struct {
	agent       Chatter
	users       UserDirectory
	maxBodySize int64
	origins     []string
	logger      *slog.Logger
}

// NewHandler creates a chat handler. maxBodySize <= 0 uses 1MB.
func NewHandler(agent Chatter, users UserDirectory, maxBodySize int64, origins []string, logger *slog.Logger) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{agent: agent, users: users, maxBodySize: maxBodySize, origins: origins, logger: logger}
}

// RegisterRoutes registers chat routes on the /api sub-router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/{id}/chat", h.HandleChat)
	r.Get("/users/{id}/chat/ws", h.HandleChatSocket)
}

// HandleChat handles POST /users/{id}/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := h.chatUser(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := api.DecodeJSON(w, r, h.maxBodySize, &req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	h.touch(r.Context(), user.ID)
	req.UserID = user.ID
	req.UserName = user.Name

	h.logger.Info("Agent chat request",
		"user_id", user.ID,
		"message_length", len(req.Message),
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)

	resp, err := h.agent.Chat(r.Context(), req)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// wsMessage is the frame exchanged on the chat socket.
type wsMessage struct {
	Type      string   `json:"type"`
	Content   string   `json:"content,omitempty"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
}

// HandleChatSocket upgrades GET /users/{id}/chat/ws to a WebSocket carrying chat turns.
// A failed turn is reported as an error frame and the socket stays open.
func (h *Handler) HandleChatSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.chatUser(w, r)
	if !ok {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("WebSocket accept failed", "user_id", user.ID, "error", err)
		return
	}
	defer func() { _ = ws.CloseNow() }()
	ws.SetReadLimit(h.maxBodySize)

	ctx := r.Context()
	logger := h.logger.With("user_id", user.ID)
	logger.Info("Chat socket connected")

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				logger.Info("Chat socket closed")
			} else {
				logger.Warn("Chat socket read failed", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := writeFrame(ctx, ws, wsMessage{Type: "error", Content: "invalid message"}); err != nil {
				return
			}
			continue
		}

		var reply wsMessage
		switch msg.Type {
		case "ping":
			reply = wsMessage{Type: "pong"}
		case "message":
			reply = h.socketTurn(ctx, user, msg.Content)
		default:
			reply = wsMessage{Type: "error", Content: "unknown message type"}
		}

		if err := writeFrame(ctx, ws, reply); err != nil {
			logger.Warn("Chat socket write failed", "error", err)
			return
		}
	}
}

func (h *Handler) socketTurn(ctx context.Context, user *domain.User, content string) wsMessage {
	if strings.TrimSpace(content) == "" {
		return wsMessage{Type: "error", Content: "message is required"}
	}

	h.touch(ctx, user.ID)
	resp, err := h.agent.Chat(ctx, ChatRequest{Message: content, UserID: user.ID, UserName: user.Name})
	if err != nil {
		var modelErr *domain.ModelError
		if errors.As(err, &modelErr) {
			return wsMessage{Type: "error", Content: "assistant is unavailable, please try again"}
		}
		h.logger.Error("Chat turn failed", "user_id", user.ID, "error", err)
		return wsMessage{Type: "error", Content: "internal server error"}
	}
	return wsMessage{Type: "response", Content: resp.Response, ToolsUsed: resp.ToolsUsed, Degraded: resp.Degraded}
}

func (h *Handler) chatUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, err := api.PathID(r, "id")
	if err != nil {
		api.WriteError(w, err)
		return nil, false
	}
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		api.WriteError(w, err)
		return nil, false
	}
	return user, true
}

// touch records activity; a failure is logged and does not block the chat.
func (h *Handler) touch(ctx context.Context, userID int64) {
	if err := h.users.Touch(ctx, userID); err != nil {
		h.logger.Warn("Failed to update last_active", "user_id", userID, "error", err)
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return ws.Write(wctx, websocket.MessageText, data)
}
