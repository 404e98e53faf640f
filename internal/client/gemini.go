package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"deputy/internal/logging"
)

// GeminiConfig holds configuration for the Gemini decision backend.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// GeminiClient implements Client on top of the Gemini API using native
// function calling.
type GeminiClient struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiClient creates a new Gemini decision client.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client: c,
		config: config,
	}, nil
}

// RawClient exposes the underlying genai client so the embedder can share
// the same connection.
func (c *GeminiClient) RawClient() *genai.Client {
	return c.client
}

// Decide asks the model for exactly one decision.
func (c *GeminiClient) Decide(ctx context.Context, req Request) (*Decision, error) {
	declarations := append([]*genai.FunctionDeclaration{}, req.Tools...)
	declarations = append(declarations, planDeclaration())

	temp := c.config.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
		Tools: []*genai.Tool{
			{FunctionDeclarations: declarations},
		},
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: req.Prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini decision failed: %w", err)
	}

	if calls := resp.FunctionCalls(); len(calls) > 0 {
		// One decision per call: extra function calls are ignored.
		fc := calls[0]
		if len(calls) > 1 {
			logging.Warn("model returned multiple function calls, using first", "count", len(calls))
		}
		return decisionFromFunctionCall(fc.Name, fc.Args)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrMalformedDecision
	}
	return &Decision{Kind: KindRespond, Text: text}, nil
}

// Close closes the client.
func (c *GeminiClient) Close() error {
	// The genai client holds no persistent connection to release.
	return nil
}
