package agent

import (
	"context"
	"fmt"
)

// NewModel builds the configured provider.
func NewModel(ctx context.Context, cfg Config) (Model, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return NewGeminiModel(ctx, cfg.GoogleAPIKey, cfg.ModelName, cfg.Temperature)
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIModel(cfg.OpenAIAPIKey, cfg.OpenAIURL, cfg.ModelName, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
}
