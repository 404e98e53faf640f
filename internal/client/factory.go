package client

import (
	"context"
	"fmt"

	"deputy/internal/config"
)

// New creates the decision client for the configured provider.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.API.Provider {
	case "", "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.API.GeminiKey,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
		})

	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.API.OllamaBaseURL,
			APIKey:  cfg.API.OllamaKey,
			Model:   cfg.Model.Name,
		})

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.API.Provider)
	}
}
