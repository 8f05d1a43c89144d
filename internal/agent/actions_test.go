package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ashureev/todobot/internal/domain"
)

func TestParseActionRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		call    ToolCall
		kind    ActionKind
		todoID  int64
		task    string
		wantErr bool
	}{
		{"add", ToolCall{Name: toolAdd, Args: map[string]any{"task": " milk "}}, ActionAdd, 0, "milk", false},
		{"add missing task", ToolCall{Name: toolAdd, Args: map[string]any{}}, ActionAdd, 0, "", true},
		{"list", ToolCall{Name: toolList}, ActionList, 0, "", false},
		{"complete float", ToolCall{Name: toolComplete, Args: map[string]any{"todo_id": float64(3)}}, ActionComplete, 3, "", false},
		{"complete fractional", ToolCall{Name: toolComplete, Args: map[string]any{"todo_id": 3.5}}, ActionComplete, 0, "", true},
		{"complete beyond int64", ToolCall{Name: toolComplete, Args: map[string]any{"todo_id": 1e20}}, ActionComplete, 0, "", true},
		{"remove below int64", ToolCall{Name: toolRemove, Args: map[string]any{"todo_id": -1e19}}, ActionRemove, 0, "", true},
		{"remove string", ToolCall{Name: toolRemove, Args: map[string]any{"todo_id": "12"}}, ActionRemove, 12, "", false},
		{"remove json number", ToolCall{Name: toolRemove, Args: map[string]any{"todo_id": json.Number("9")}}, ActionRemove, 9, "", false},
		{"remove missing id", ToolCall{Name: toolRemove}, ActionRemove, 0, "", true},
		{"stats", ToolCall{Name: toolStats}, ActionStats, 0, "", false},
		{"unknown", ToolCall{Name: "drop_tables"}, ActionUnknown, 0, "", true},
	}

	for _, tt := range tests {
		req, err := ParseActionRequest(tt.call)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if req.Kind != tt.kind {
			t.Errorf("%s: kind = %v, want %v", tt.name, req.Kind, tt.kind)
		}
		if !tt.wantErr && (req.TodoID != tt.todoID || req.Task != tt.task) {
			t.Errorf("%s: got %+v", tt.name, req)
		}
	}
}

func TestDispatcherResultTexts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	d := NewDispatcher(env.todos, nil, env.metrics)

	res := d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionList})
	if res.Text != "You have no todos yet." || !res.OK {
		t.Fatalf("empty list = %+v", res)
	}

	res = d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionAdd, Task: "buy milk"})
	if !res.OK || res.Text != "Added todo: 'buy milk' (ID: 1)" {
		t.Fatalf("add = %+v", res)
	}
	d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionAdd, Task: "walk dog"})

	res = d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionComplete, TodoID: 1})
	if !res.OK || res.Text != "Marked todo ID 1 as completed!" {
		t.Fatalf("complete = %+v", res)
	}
	res = d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionComplete, TodoID: 1})
	if res.OK || res.Text != "Todo with ID 1 not found or already completed" {
		t.Fatalf("repeat complete = %+v", res)
	}

	res = d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionList})
	want := "Pending todos:\n  - walk dog (ID: 2)\n\nCompleted todos:\n  - buy milk (ID: 1)"
	if res.Text != want {
		t.Fatalf("list = %q, want %q", res.Text, want)
	}

	res = d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionStats})
	if res.Text != "Todo Stats: 2 total, 1 completed, 1 pending" {
		t.Fatalf("stats = %q", res.Text)
	}

	res = d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionRemove, TodoID: 2})
	if !res.OK || res.Text != "Removed todo ID 2" {
		t.Fatalf("remove = %+v", res)
	}
	res = d.Execute(ctx, alice.ID, ActionRequest{Kind: ActionRemove, TodoID: 2})
	if res.OK || res.Text != "Todo with ID 2 not found" {
		t.Fatalf("repeat remove = %+v", res)
	}

	if env.metrics.actions["complete_todo_tool/false"] != 1 || env.metrics.actions["add_todo_tool/true"] != 2 {
		t.Errorf("unexpected action metrics %v", env.metrics.actions)
	}
}

type failingTodos struct{ TodoActions }

func (failingTodos) Stats(context.Context, int64) (domain.TodoStats, error) {
	return domain.TodoStats{}, errors.New("disk I/O error")
}

func TestDispatcherTurnsStorageErrorsIntoText(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(failingTodos{}, nil, nil)
	res := d.Execute(context.Background(), 1, ActionRequest{Kind: ActionStats})
	if res.OK {
		t.Fatal("expected failed result")
	}
	if res.Text != "Error running get_todo_stats_tool: disk I/O error" {
		t.Errorf("unexpected text %q", res.Text)
	}
}

func TestFormatTodoListOnlyCompleted(t *testing.T) {
	t.Parallel()

	got := formatTodoList([]*domain.Todo{{ID: 4, Task: "done thing", Completed: true}})
	if got != "Completed todos:\n  - done thing (ID: 4)" {
		t.Errorf("unexpected listing %q", got)
	}
}
