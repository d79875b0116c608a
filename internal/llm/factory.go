package llm

import (
	"context"
	"fmt"

	"codemend/internal/config"
)

// NewClientFromConfig builds the configured provider's client.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	timeout := config.ParseTimeout(cfg.Timeout, 0)

	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)

	case "openai", "openai-compatible":
		return NewOpenAICompatClient(OpenAICompatConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid: gemini, openai-compatible)", cfg.Provider)
	}
}
