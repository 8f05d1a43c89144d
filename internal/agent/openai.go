package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/sashabaranov/go-openai"
)

// OpenAIModel talks to any OpenAI-compatible chat completions endpoint,
// such as OpenRouter.
type OpenAIModel struct {
	client      *openai.Client
	modelName   string
	temperature float32
}

var _ Model = (*OpenAIModel)(nil)

// NewOpenAIModel creates a client. An empty baseURL uses the OpenAI default.
func NewOpenAIModel(apiKey, baseURL, modelName string, temperature float32) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(cfg),
		modelName:   modelName,
		temperature: temperature,
	}
}

// Name implements Model.
func (o *OpenAIModel) Name() string { return ProviderOpenAI }

// Generate implements Model.
func (o *OpenAIModel) Generate(ctx context.Context, messages []Message, actions []ActionSpec) (Message, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.modelName,
		Messages:    toOpenAIMessages(messages),
		Tools:       openAITools(actions),
		Temperature: o.temperature,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Message{}, &domain.ModelError{Provider: ProviderOpenAI, Err: err}
	}
	if len(resp.Choices) == 0 {
		return Message{}, &domain.ModelError{Provider: ProviderOpenAI, Err: errors.New("empty response")}
	}

	msg, err := fromOpenAIMessage(resp.Choices[0].Message)
	if err != nil {
		return Message{}, &domain.ModelError{Provider: ProviderOpenAI, Err: err}
	}
	return msg, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case RoleAssistant:
			cm := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, call := range m.ToolCalls {
				args, err := json.Marshal(call.Args)
				if err != nil || call.Args == nil {
					args = []byte("{}")
				}
				cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, cm)
		case RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				Name:       m.Name,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func openAITools(actions []ActionSpec) []openai.Tool {
	tools := make([]openai.Tool, 0, len(actions))
	for _, a := range actions {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        a.Name,
				Description: a.Description,
				Parameters:  jsonSchema(a),
			},
		})
	}
	return tools
}

// jsonSchema renders the parameter object schema for an action.
func jsonSchema(a ActionSpec) map[string]any {
	props := make(map[string]any, len(a.Params))
	required := make([]string, 0, len(a.Params))
	for _, p := range a.Params {
		props[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		required = append(required, p.Name)
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) (Message, error) {
	msg := Message{Role: RoleAssistant, Content: m.Content}
	for _, tc := range m.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return Message{}, fmt.Errorf("decode arguments for %s: %w", tc.Function.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return msg, nil
}
