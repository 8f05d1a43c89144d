package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/todobot/internal/domain"
)

// ConversationLog persists chat entries and replays them for context.
type ConversationLog interface {
	HistorySource
	Append(ctx context.Context, userID int64, role domain.Role, content string) (*domain.ConversationEntry, error)
}

// Service provides the chat entry point: persist, run the loop, persist.
type Service struct {
	conversations ConversationLog
	loop          *Loop
	logger        *slog.Logger
	metrics       Recorder
}

// NewService wires the agent from its collaborators.
func NewService(cfg Config, model Model, todos TodoActions, conversations ConversationLog, logger *slog.Logger, metrics Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	logger = logger.With("component", "agent", "provider", model.Name())

	loop := NewLoop(
		NewAssembler(conversations, cfg.HistoryLimit),
		model,
		NewDispatcher(todos, logger, metrics),
		LoopConfig{MaxRounds: cfg.MaxRounds, ModelTimeout: cfg.ModelTimeout},
		logger,
		metrics,
	)

	return &Service{
		conversations: conversations,
		loop:          loop,
		logger:        logger,
		metrics:       metrics,
	}
}

// Chat processes a user message and returns the assistant's reply.
// The user entry is written before the model runs and is kept if the model fails;
// the assistant entry is written only on success.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, &domain.ValidationError{Field: "message", Reason: "is required"}
	}

	userEntry, err := s.conversations.Append(ctx, req.UserID, domain.RoleUser, message)
	if err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	out, err := s.loop.Run(ctx, Turn{
		UserID:         req.UserID,
		UserName:       req.UserName,
		Message:        message,
		CurrentEntryID: userEntry.ID,
	})
	if err != nil {
		var me *domain.ModelError
		if errors.As(err, &me) {
			s.metrics.ObserveTurn(OutcomeModelError, 0)
			s.logger.Error("Model call failed", "user_id", req.UserID, "error", err)
		}
		return nil, err
	}

	if _, err := s.conversations.Append(ctx, req.UserID, domain.RoleAssistant, out.Answer); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	outcome := OutcomeOK
	if out.Degraded {
		outcome = OutcomeDegraded
	}
	s.metrics.ObserveTurn(outcome, out.Rounds)
	s.logger.Info("Chat turn complete",
		"user_id", req.UserID,
		"rounds", out.Rounds,
		"tools_used", len(out.ToolsUsed),
		"degraded", out.Degraded,
	)

	return &ChatResponse{
		Response:  out.Answer,
		ToolsUsed: out.ToolsUsed,
		Degraded:  out.Degraded,
	}, nil
}
