// Package agent implements the TodoBot chat assistant: context assembly,
// the tool-call loop and the model providers that drive it.
package agent

import (
	"time"
)

// ChatRequest represents a chat request to the agent.
type ChatRequest struct {
	Message  string `json:"message"`
	UserID   int64  `json:"-"`
	UserName string `json:"-"`
}

// ChatResponse represents a chat response from the agent.
type ChatResponse struct {
	Response  string   `json:"response"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
}

// Role tags a message in the model transcript.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single action the model asked for.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Message is one entry of the transcript exchanged with the model.
// Assistant messages may carry ToolCalls; tool messages answer one call by ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Default model per provider.
const (
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Config holds agent configuration.
type Config struct {
	Provider     string
	ModelName    string
	GoogleAPIKey string
	OpenAIAPIKey string
	OpenAIURL    string
	Temperature  float32
	HistoryLimit int
	MaxRounds    int
	ModelTimeout time.Duration
}

// DefaultConfig returns default agent configuration.
func DefaultConfig() Config {
	return Config{
		Provider:     ProviderGemini,
		ModelName:    DefaultGeminiModel,
		Temperature:  0.7,
		HistoryLimit: 5,
		MaxRounds:    8,
		ModelTimeout: 30 * time.Second,
	}
}
