package domain

import (
	"fmt"
	"time"
)

// Role identifies the author of a conversation entry.
type Role string

const (
	// RoleUser marks a message written by the human.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the agent.
	RoleAssistant Role = "assistant"
)

// ParseRole validates a stored role value.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown conversation role %q", s)
	}
}

// ConversationEntry is an append-only chat log record.
type ConversationEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
