package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/todobot/internal/domain"
)

const systemPromptTemplate = `You are TodoBot, a helpful AI assistant for managing todo lists. You are talking to %s.

You have access to tools to manage their personal todo list. You can:
- Add new todos using add_todo_tool
- List existing todos using list_todos_tool
- Mark todos as completed using complete_todo_tool
- Remove todos using remove_todo_tool
- Get todo statistics using get_todo_stats_tool

Guidelines:
- Always be friendly and professional
- When listing todos, format them clearly
- Be helpful in suggesting todo management actions
- If the user asks about todos or wants to manage tasks, use the appropriate tools
- Don't use any emojis in your responses`

// SystemPrompt renders the fixed persona instruction for userName.
func SystemPrompt(userName string) string {
	return fmt.Sprintf(systemPromptTemplate, userName)
}

// HistorySource supplies recent conversation entries in chronological order.
type HistorySource interface {
	History(ctx context.Context, userID int64, limit int) ([]*domain.ConversationEntry, error)
}

// Turn is the per-call input to context assembly.
type Turn struct {
	UserID   int64
	UserName string
	Message  string
	// CurrentEntryID is the stored entry for Message, skipped when replaying history.
	CurrentEntryID int64
}

// Assembler builds the initial transcript for a turn.
type Assembler struct {
	history HistorySource
	limit   int
}

// NewAssembler creates an assembler that replays up to limit prior entries.
func NewAssembler(history HistorySource, limit int) *Assembler {
	if limit < 0 {
		limit = 0
	}
	return &Assembler{history: history, limit: limit}
}

// Assemble returns system prompt, then prior history oldest first, then the new user message.
func (a *Assembler) Assemble(ctx context.Context, turn Turn) ([]Message, error) {
	messages := []Message{{Role: RoleSystem, Content: SystemPrompt(turn.UserName)}}

	if a.limit > 0 {
		// One extra row covers the entry already stored for this turn.
		entries, err := a.history.History(ctx, turn.UserID, a.limit+1)
		if err != nil {
			return nil, fmt.Errorf("load conversation context: %w", err)
		}

		prior := make([]*domain.ConversationEntry, 0, len(entries))
		for _, e := range entries {
			if turn.CurrentEntryID != 0 && e.ID == turn.CurrentEntryID {
				continue
			}
			prior = append(prior, e)
		}
		if len(prior) > a.limit {
			prior = prior[len(prior)-a.limit:]
		}

		for _, e := range prior {
			role := RoleUser
			if e.Role == domain.RoleAssistant {
				role = RoleAssistant
			}
			messages = append(messages, Message{Role: role, Content: e.Content})
		}
	}

	messages = append(messages, Message{Role: RoleUser, Content: strings.TrimSpace(turn.Message)})
	return messages, nil
}
