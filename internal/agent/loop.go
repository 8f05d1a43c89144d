package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/todobot/internal/domain"
)

// State is a step of the tool-call loop.
type State int

const (
	StateAssembleContext State = iota
	StatePlan
	StateDispatch
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAssembleContext:
		return "assemble_context"
	case StatePlan:
		return "plan"
	case StateDispatch:
		return "dispatch"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// fallbackAnswer is used when a degraded turn produced no text at all.
const fallbackAnswer = "I wasn't able to finish that request. Please try again."

// Outcome is the result of one loop run.
type Outcome struct {
	Answer     string
	Rounds     int
	ToolsUsed  []string
	Degraded   bool
	Transcript []Message
}

// Loop drives AssembleContext → Plan → {Dispatch → Plan}* → Done.
type Loop struct {
	assembler  *Assembler
	model      Model
	dispatcher *Dispatcher
	actions    []ActionSpec
	maxRounds  int
	timeout    time.Duration
	logger     *slog.Logger
	metrics    Recorder
}

// LoopConfig bounds a Loop.
type LoopConfig struct {
	MaxRounds    int
	ModelTimeout time.Duration
}

// NewLoop wires a loop. MaxRounds below 1 is raised to 1.
func NewLoop(assembler *Assembler, model Model, dispatcher *Dispatcher, cfg LoopConfig, logger *slog.Logger, metrics Recorder) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg.MaxRounds < 1 {
		cfg.MaxRounds = 1
	}
	return &Loop{
		assembler:  assembler,
		model:      model,
		dispatcher: dispatcher,
		actions:    Actions(),
		maxRounds:  cfg.MaxRounds,
		timeout:    cfg.ModelTimeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes one turn. The only errors returned are context assembly
// failures and *domain.ModelError; action failures stay in the transcript as text.
func (l *Loop) Run(ctx context.Context, turn Turn) (*Outcome, error) {
	logger := l.logger.With("user_id", turn.UserID)

	var (
		state    = StateAssembleContext
		messages []Message
		latest   Message
		out      Outcome
	)

	for {
		switch state {
		case StateAssembleContext:
			msgs, err := l.assembler.Assemble(ctx, turn)
			if err != nil {
				return nil, err
			}
			messages = msgs
			state = StatePlan

		case StatePlan:
			reply, err := l.plan(ctx, messages, out.Rounds)
			if err != nil {
				return nil, err
			}
			messages = append(messages, reply)
			latest = reply

			switch {
			case len(reply.ToolCalls) == 0:
				state = StateDone
			case out.Rounds >= l.maxRounds:
				logger.Warn("Tool-call loop bound reached", "rounds", out.Rounds, "pending_calls", len(reply.ToolCalls))
				out.Degraded = true
				state = StateDone
			default:
				state = StateDispatch
			}

		case StateDispatch:
			for _, call := range latest.ToolCalls {
				result := l.dispatch(ctx, turn.UserID, call)
				messages = append(messages, result)
				out.ToolsUsed = append(out.ToolsUsed, call.Name)
			}
			out.Rounds++
			state = StatePlan

		case StateDone:
			out.Answer = finalAnswer(messages, latest, out.Degraded)
			out.Transcript = messages
			logger.Debug("Tool-call loop finished", "rounds", out.Rounds, "degraded", out.Degraded)
			return &out, nil
		}
	}
}

func (l *Loop) plan(ctx context.Context, messages []Message, round int) (Message, error) {
	pctx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := l.model.Generate(pctx, messages, l.actions)
	l.metrics.ObserveModelCall(l.model.Name(), time.Since(start), err)
	if err != nil {
		var me *domain.ModelError
		if !errors.As(err, &me) {
			err = &domain.ModelError{Provider: l.model.Name(), Err: err}
		}
		return Message{}, err
	}

	reply.Role = RoleAssistant
	for i := range reply.ToolCalls {
		if reply.ToolCalls[i].ID == "" {
			reply.ToolCalls[i].ID = fmt.Sprintf("call_%d_%d", round, i)
		}
	}
	return reply, nil
}

func (l *Loop) dispatch(ctx context.Context, userID int64, call ToolCall) Message {
	msg := Message{Role: RoleTool, ToolCallID: call.ID, Name: call.Name}

	req, err := ParseActionRequest(call)
	if err != nil {
		l.metrics.ObserveAction(req.Kind.String(), false)
		msg.Content = fmt.Sprintf("Invalid request for %s: %v", call.Name, err)
		return msg
	}

	msg.Content = l.dispatcher.Execute(ctx, userID, req).Text
	return msg
}

// finalAnswer picks the latest model text. A degraded or empty reply falls back
// to the newest assistant text, then the newest action result.
func finalAnswer(messages []Message, latest Message, degraded bool) string {
	if !degraded && strings.TrimSpace(latest.Content) != "" {
		return latest.Content
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleTool && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}
	return fallbackAnswer
}
