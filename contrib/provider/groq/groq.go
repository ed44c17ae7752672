// Package groq implements provider.CompletionProvider for the Groq API,
// which speaks the OpenAI chat completion wire format.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/provider"
)

const groqAPIURL = "https://api.groq.com/openai/v1/chat/completions"

// Config holds Groq provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns default Groq configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "llama-3.3-70b-versatile",
		MaxTokens:   2048,
		Temperature: 0.2,
	}
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// Provider implements provider.CompletionProvider for Groq
type Provider struct {
	config *Config
	client *http.Client
}

// New creates a new Groq provider
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "llama-3.3-70b-versatile"
	}
	if config.BaseURL == "" {
		config.BaseURL = groqAPIURL
	}

	return &Provider{
		config: config,
		client: &http.Client{},
	}
}

// Name implements provider.CompletionProvider.
func (p *Provider) Name() string { return "groq" }

// groqMessage represents a message in Groq API format
type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// groqRequest represents a Groq API request
type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// groqChoice represents a choice in Groq API response
type groqChoice struct {
	Message groqMessage `json:"message"`
}

// groqResponse represents a Groq API response
type groqResponse struct {
	Model   string       `json:"model"`
	Choices []groqChoice `json:"choices"`
	Error   *groqError   `json:"error,omitempty"`
}

// groqError represents an error in Groq API response
type groqError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete implements provider.CompletionProvider. Request values take
// precedence over the configured defaults.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("Groq API key not configured")
	}

	// Convert messages to Groq format
	groqMessages := make([]groqMessage, len(req.Messages))
	for i, msg := range req.Messages {
		groqMessages[i] = groqMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.config.Temperature
	}

	payload := groqRequest{
		Model:       model,
		Messages:    groqMessages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.APIKey))
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Groq API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp groqResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("Groq API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq: %w", errs.ErrEmptyResponse)
	}

	respModel := resp.Model
	if respModel == "" {
		respModel = model
	}

	return &provider.Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   respModel,
	}, nil
}
