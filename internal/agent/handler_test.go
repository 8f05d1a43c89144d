package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

type fakeChatter struct {
	mu   sync.Mutex
	got  []ChatRequest
	resp *ChatResponse
	err  error
}

func (f *fakeChatter) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	return f.resp, f.err
}

type fakeDirectory struct {
	mu      sync.Mutex
	users   map[int64]*domain.User
	touched []int64
}

func (d *fakeDirectory) Get(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, &domain.NotFoundError{Resource: "user", ID: id}
}

func (d *fakeDirectory) Touch(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched = append(d.touched, id)
	return nil
}

func newChatServer(t *testing.T, chatter *fakeChatter) (*httptest.Server, *fakeDirectory) {
	t.Helper()

	dir := &fakeDirectory{users: map[int64]*domain.User{7: {ID: 7, Name: "alice"}}}
	h := NewHandler(chatter, dir, 256, nil, nil)

	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, dir
}

func postChat(t *testing.T, srv *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()

	resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHandleChat(t *testing.T) {
	t.Parallel()
	chatter := &fakeChatter{resp: &ChatResponse{Response: "Added it.", ToolsUsed: []string{toolAdd}}}
	srv, dir := newChatServer(t, chatter)

	status, body := postChat(t, srv, "/api/users/7/chat", `{"message":"add milk"}`)
	if status != http.StatusOK || body["response"] != "Added it." {
		t.Fatalf("chat: %d %v", status, body)
	}
	if _, ok := body["degraded"]; ok {
		t.Error("degraded should be omitted on a normal turn")
	}

	if len(chatter.got) != 1 || chatter.got[0].UserID != 7 || chatter.got[0].UserName != "alice" {
		t.Fatalf("chatter received %+v", chatter.got)
	}
	if len(dir.touched) != 1 {
		t.Errorf("expected last_active touch, got %v", dir.touched)
	}
}

func TestHandleChatErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		path   string
		body   string
		status int
	}{
		{"unknown user", nil, "/api/users/8/chat", `{"message":"hi"}`, http.StatusNotFound},
		{"bad id", nil, "/api/users/x/chat", `{"message":"hi"}`, http.StatusBadRequest},
		{"blank message", nil, "/api/users/7/chat", `{"message":"  "}`, http.StatusBadRequest},
		{"malformed body", nil, "/api/users/7/chat", `{"message":`, http.StatusBadRequest},
		{"oversized body", nil, "/api/users/7/chat", `{"message":"` + strings.Repeat("x", 512) + `"}`, http.StatusRequestEntityTooLarge},
		{"model failure", &domain.ModelError{Provider: "gemini", Err: errors.New("503")}, "/api/users/7/chat", `{"message":"hi"}`, http.StatusBadGateway},
	}

	for _, tt := range tests {
		chatter := &fakeChatter{resp: &ChatResponse{Response: "ok"}, err: tt.err}
		srv, _ := newChatServer(t, chatter)

		status, body := postChat(t, srv, tt.path, tt.body)
		if status != tt.status {
			t.Errorf("%s: status = %d, want %d (%v)", tt.name, status, tt.status, body)
		}
		if _, ok := body["error"]; !ok {
			t.Errorf("%s: expected error body, got %v", tt.name, body)
		}
	}
}

func TestHandleChatSocket(t *testing.T) {
	t.Parallel()
	chatter := &fakeChatter{resp: &ChatResponse{Response: "You have no todos yet.", ToolsUsed: []string{toolList}}}
	srv, _ := newChatServer(t, chatter)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/users/7/chat/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	exchange := func(in wsMessage) wsMessage {
		t.Helper()
		data, _ := json.Marshal(in)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var out wsMessage
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return out
	}

	if got := exchange(wsMessage{Type: "ping"}); got.Type != "pong" {
		t.Fatalf("expected pong, got %+v", got)
	}

	got := exchange(wsMessage{Type: "message", Content: "what's on my list?"})
	if got.Type != "response" || got.Content != "You have no todos yet." || len(got.ToolsUsed) != 1 {
		t.Fatalf("unexpected response frame %+v", got)
	}

	if got := exchange(wsMessage{Type: "message", Content: " "}); got.Type != "error" {
		t.Fatalf("blank message should produce an error frame, got %+v", got)
	}

	chatter.mu.Lock()
	chatter.err = &domain.ModelError{Provider: "gemini", Err: errors.New("timeout")}
	chatter.mu.Unlock()
	if got := exchange(wsMessage{Type: "message", Content: "again"}); got.Type != "error" {
		t.Fatalf("model failure should produce an error frame, got %+v", got)
	}

	// The socket survives failed turns.
	if got := exchange(wsMessage{Type: "ping"}); got.Type != "pong" {
		t.Fatalf("socket should remain usable, got %+v", got)
	}
}

func TestHandleChatSocketUnknownUser(t *testing.T) {
	t.Parallel()
	srv, _ := newChatServer(t, &fakeChatter{})

	resp, err := srv.Client().Get(srv.URL + "/api/users/99/chat/ws")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before upgrade, got %d", resp.StatusCode)
	}
}
