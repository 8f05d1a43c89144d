package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/todobot/internal/domain"
)

// ActionKind enumerates the operations the model may request.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionAdd
	ActionList
	ActionComplete
	ActionRemove
	ActionStats
)

// Tool names as declared to the model.
const (
	toolAdd      = "add_todo_tool"
	toolList     = "list_todos_tool"
	toolComplete = "complete_todo_tool"
	toolRemove   = "remove_todo_tool"
	toolStats    = "get_todo_stats_tool"
)

func (k ActionKind) String() string {
	switch k {
	case ActionAdd:
		return toolAdd
	case ActionList:
		return toolList
	case ActionComplete:
		return toolComplete
	case ActionRemove:
		return toolRemove
	case ActionStats:
		return toolStats
	default:
		return "unknown"
	}
}

// ParamType is the JSON-schema type of an action parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

// ParamSpec declares one action parameter.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
}

// ActionSpec declares an action to the model. All listed params are required.
type ActionSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
}

var actionSpecs = []ActionSpec{
	{
		Name:        toolAdd,
		Description: "Add a new todo item for the current user.",
		Params:      []ParamSpec{{Name: "task", Type: ParamString, Description: "The task text."}},
	},
	{
		Name:        toolList,
		Description: "List all todos for the current user.",
	},
	{
		Name:        toolComplete,
		Description: "Mark a todo as completed for the current user.",
		Params:      []ParamSpec{{Name: "todo_id", Type: ParamInteger, Description: "ID of the todo to complete."}},
	},
	{
		Name:        toolRemove,
		Description: "Remove a todo item for the current user.",
		Params:      []ParamSpec{{Name: "todo_id", Type: ParamInteger, Description: "ID of the todo to remove."}},
	},
	{
		Name:        toolStats,
		Description: "Get todo statistics for the current user.",
	},
}

// Actions returns the declared action set.
func Actions() []ActionSpec {
	out := make([]ActionSpec, len(actionSpecs))
	copy(out, actionSpecs)
	return out
}

// ActionRequest is a parsed, typed tool call. Only the fields relevant to Kind are set.
type ActionRequest struct {
	CallID string
	Name   string
	Kind   ActionKind
	Task   string
	TodoID int64
}

// ParseActionRequest validates a raw tool call into an ActionRequest.
// The returned request always carries CallID and Name so a failure can still be answered.
func ParseActionRequest(call ToolCall) (ActionRequest, error) {
	req := ActionRequest{CallID: call.ID, Name: call.Name}

	switch call.Name {
	case toolAdd:
		req.Kind = ActionAdd
		task, ok := call.Args["task"].(string)
		if !ok || strings.TrimSpace(task) == "" {
			return req, fmt.Errorf("missing task")
		}
		req.Task = strings.TrimSpace(task)
	case toolList:
		req.Kind = ActionList
	case toolComplete, toolRemove:
		req.Kind = ActionComplete
		if call.Name == toolRemove {
			req.Kind = ActionRemove
		}
		id, err := intArg(call.Args, "todo_id")
		if err != nil {
			return req, err
		}
		req.TodoID = id
	case toolStats:
		req.Kind = ActionStats
	default:
		return req, fmt.Errorf("unknown action %q", call.Name)
	}
	return req, nil
}

// intArg accepts the numeric shapes different providers decode JSON into.
func intArg(args map[string]any, name string) (int64, error) {
	v, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("missing %s", name)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%s has unsupported type %T", name, v)
	}
}

// TodoActions is the todo surface the dispatcher needs. Every call names the acting user.
type TodoActions interface {
	Add(ctx context.Context, userID int64, task string) (*domain.Todo, error)
	List(ctx context.Context, userID int64) ([]*domain.Todo, error)
	Complete(ctx context.Context, userID, todoID int64) (bool, error)
	Remove(ctx context.Context, userID, todoID int64) (bool, error)
	Stats(ctx context.Context, userID int64) (domain.TodoStats, error)
}

// ActionResult is the textual outcome handed back to the model.
type ActionResult struct {
	Text string
	OK   bool
}

// Dispatcher executes parsed actions against the todo service.
type Dispatcher struct {
	todos   TodoActions
	logger  *slog.Logger
	metrics Recorder
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(todos TodoActions, logger *slog.Logger, metrics Recorder) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Dispatcher{todos: todos, logger: logger, metrics: metrics}
}

// Execute runs req for userID. Failures, including storage errors, are returned
// as text with OK=false so one failed action never aborts the turn.
func (d *Dispatcher) Execute(ctx context.Context, userID int64, req ActionRequest) ActionResult {
	res, err := d.execute(ctx, userID, req)
	if err != nil {
		d.logger.Error("Action failed", "user_id", userID, "action", req.Kind.String(), "error", err)
		res = ActionResult{Text: fmt.Sprintf("Error running %s: %v", req.Kind, err)}
	}
	d.metrics.ObserveAction(req.Kind.String(), res.OK)
	return res
}

func (d *Dispatcher) execute(ctx context.Context, userID int64, req ActionRequest) (ActionResult, error) {
	switch req.Kind {
	case ActionAdd:
		t, err := d.todos.Add(ctx, userID, req.Task)
		if err != nil {
			return ActionResult{}, err
		}
		return ActionResult{Text: fmt.Sprintf("Added todo: '%s' (ID: %d)", t.Task, t.ID), OK: true}, nil

	case ActionList:
		todos, err := d.todos.List(ctx, userID)
		if err != nil {
			return ActionResult{}, err
		}
		return ActionResult{Text: formatTodoList(todos), OK: true}, nil

	case ActionComplete:
		ok, err := d.todos.Complete(ctx, userID, req.TodoID)
		if err != nil {
			return ActionResult{}, err
		}
		if !ok {
			return ActionResult{Text: fmt.Sprintf("Todo with ID %d not found or already completed", req.TodoID)}, nil
		}
		return ActionResult{Text: fmt.Sprintf("Marked todo ID %d as completed!", req.TodoID), OK: true}, nil

	case ActionRemove:
		ok, err := d.todos.Remove(ctx, userID, req.TodoID)
		if err != nil {
			return ActionResult{}, err
		}
		if !ok {
			return ActionResult{Text: fmt.Sprintf("Todo with ID %d not found", req.TodoID)}, nil
		}
		return ActionResult{Text: fmt.Sprintf("Removed todo ID %d", req.TodoID), OK: true}, nil

	case ActionStats:
		s, err := d.todos.Stats(ctx, userID)
		if err != nil {
			return ActionResult{}, err
		}
		return ActionResult{
			Text: fmt.Sprintf("Todo Stats: %d total, %d completed, %d pending", s.Total, s.Completed, s.Pending),
			OK:   true,
		}, nil

	default:
		return ActionResult{Text: fmt.Sprintf("Unknown action %q", req.Name)}, nil
	}
}

func formatTodoList(todos []*domain.Todo) string {
	if len(todos) == 0 {
		return "You have no todos yet."
	}

	var pending, completed []string
	for _, t := range todos {
		line := fmt.Sprintf("  - %s (ID: %d)", t.Task, t.ID)
		if t.Completed {
			completed = append(completed, line)
		} else {
			pending = append(pending, line)
		}
	}

	var b strings.Builder
	if len(pending) > 0 {
		b.WriteString("Pending todos:\n")
		b.WriteString(strings.Join(pending, "\n"))
	}
	if len(completed) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Completed todos:\n")
		b.WriteString(strings.Join(completed, "\n"))
	}
	return b.String()
}
