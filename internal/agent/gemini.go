package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/todobot/internal/domain"
	"google.golang.org/genai"
)

// GeminiModel calls the Gemini API with function declarations for each action.
type GeminiModel struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

var _ Model = (*GeminiModel)(nil)

// NewGeminiModel creates a Gemini client authenticated by API key.
func NewGeminiModel(ctx context.Context, apiKey, modelName string, temperature float32) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client, modelName: modelName, temperature: temperature}, nil
}

// Name implements Model.
func (g *GeminiModel) Name() string { return ProviderGemini }

// Generate implements Model.
func (g *GeminiModel) Generate(ctx context.Context, messages []Message, actions []ActionSpec) (Message, error) {
	system, contents := toGeminiContents(messages)

	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
		Tools:       geminiTools(actions),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return Message{}, &domain.ModelError{Provider: ProviderGemini, Err: err}
	}

	msg, err := fromGeminiResponse(res)
	if err != nil {
		return Message{}, &domain.ModelError{Provider: ProviderGemini, Err: err}
	}
	return msg, nil
}

// toGeminiContents splits out the system text and maps the rest of the transcript.
// Consecutive tool results are merged into one user turn, as Gemini expects all
// function responses for a model turn together.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	var pending []*genai.Part

	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, genai.NewContentFromParts(pending, genai.RoleUser))
			pending = nil
		}
	}

	for _, m := range messages {
		if m.Role != RoleTool {
			flush()
		}
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, call := range m.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, call.Args))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case RoleTool:
			pending = append(pending, genai.NewPartFromFunctionResponse(m.Name, map[string]any{"result": m.Content}))
		}
	}
	flush()

	return strings.Join(system, "\n\n"), contents
}

func geminiTools(actions []ActionSpec) []*genai.Tool {
	if len(actions) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(actions))
	for _, a := range actions {
		decl := &genai.FunctionDeclaration{Name: a.Name, Description: a.Description}
		if len(a.Params) > 0 {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(a.Params)),
			}
			for _, p := range a.Params {
				t := genai.TypeString
				if p.Type == ParamInteger {
					t = genai.TypeInteger
				}
				schema.Properties[p.Name] = &genai.Schema{Type: t, Description: p.Description}
				schema.Required = append(schema.Required, p.Name)
			}
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func fromGeminiResponse(res *genai.GenerateContentResponse) (Message, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return Message{}, errors.New("empty response")
	}

	msg := Message{Role: RoleAssistant}
	var text strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		switch {
		case part == nil:
		case part.FunctionCall != nil:
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	msg.Content = text.String()
	return msg, nil
}
