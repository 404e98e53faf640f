package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"deputy/internal/logging"
)

// OllamaConfig holds configuration for the Ollama decision backend.
type OllamaConfig struct {
	BaseURL     string // Default: "http://localhost:11434"
	APIKey      string // Optional, for remote Ollama servers with auth
	Model       string // e.g., "llama3.2", "qwen2.5-coder"
	HTTPTimeout time.Duration
}

// OllamaClient implements Client against a local or remote Ollama server.
// Models without native function calling are handled by parsing tool calls
// out of the text output.
type OllamaClient struct {
	client *api.Client
	config OllamaConfig
}

// authTransport adds an Authorization header to HTTP requests.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(reqClone)
}

// NewOllamaClient creates a new Ollama decision client.
func NewOllamaClient(config OllamaConfig) (*OllamaClient, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 120 * time.Second
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}

	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("Ollama connection uses unencrypted HTTP to remote host", "host", host)
		}
	}

	httpClient := &http.Client{Timeout: config.HTTPTimeout}
	if config.APIKey != "" {
		httpClient.Transport = &authTransport{
			base:   http.DefaultTransport,
			apiKey: config.APIKey,
		}
	}

	return &OllamaClient{
		client: api.NewClient(baseURL, httpClient),
		config: config,
	}, nil
}

// Decide asks the model for exactly one decision.
func (c *OllamaClient) Decide(ctx context.Context, req Request) (*Decision, error) {
	declarations := append([]*genai.FunctionDeclaration{}, req.Tools...)
	declarations = append(declarations, planDeclaration())

	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Tools:    convertDeclarations(declarations),
		Stream:   &stream,
	}

	var content string
	var toolCalls []api.ToolCall
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		toolCalls = append(toolCalls, resp.Message.ToolCalls...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama decision failed: %w", err)
	}

	if len(toolCalls) > 0 {
		tc := toolCalls[0]
		if len(toolCalls) > 1 {
			logging.Warn("model returned multiple tool calls, using first", "count", len(toolCalls))
		}
		return decisionFromFunctionCall(tc.Function.Name, tc.Function.Arguments.ToMap())
	}

	// Fallback: local models often emit tool calls as JSON in the text.
	if call := ParseToolCallFromText(content); call != nil {
		return decisionFromFunctionCall(call.Name, call.Args)
	}

	text := strings.TrimSpace(content)
	if text == "" {
		return nil, ErrMalformedDecision
	}
	return &Decision{Kind: KindRespond, Text: text}, nil
}

// convertDeclarations converts genai declarations to Ollama tool format.
func convertDeclarations(declarations []*genai.FunctionDeclaration) []api.Tool {
	tools := make([]api.Tool, 0, len(declarations))

	for _, decl := range declarations {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Properties: api.NewToolPropertiesMap(),
		}

		if decl.Parameters != nil {
			if len(decl.Parameters.Required) > 0 {
				params.Required = decl.Parameters.Required
			}
			for name, propSchema := range decl.Parameters.Properties {
				prop := api.ToolProperty{
					Description: propSchema.Description,
				}
				if propSchema.Type != "" {
					prop.Type = api.PropertyType{strings.ToLower(string(propSchema.Type))}
				}
				params.Properties.Set(name, prop)
			}
		}

		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  params,
			},
		})
	}

	return tools
}

// Close closes the client.
func (c *OllamaClient) Close() error {
	return nil
}
