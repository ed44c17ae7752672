// Package cohere implements provider.CompletionProvider for the Cohere
// v2 chat API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/provider"
)

const cohereAPIURL = "https://api.cohere.com/v2/chat"

// Config holds Cohere provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns default Cohere configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "command-r-plus",
		MaxTokens:   2048,
		Temperature: 0.2,
	}
}

var _ provider.CompletionProvider = (*Provider)(nil)

// Provider implements provider.CompletionProvider for Cohere
type Provider struct {
	config *Config
	client *http.Client
}

// New creates a new Cohere provider
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "command-r-plus"
	}
	if config.BaseURL == "" {
		config.BaseURL = cohereAPIURL
	}

	return &Provider{
		config: config,
		client: &http.Client{},
	}
}

// Name implements provider.CompletionProvider.
func (p *Provider) Name() string { return "cohere" }

// cohereMessage represents a message in Cohere API format
type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// cohereRequest represents a Cohere API request
type cohereRequest struct {
	Model       string          `json:"model"`
	Messages    []cohereMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// cohereResponse represents a Cohere API response
type cohereResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Error *cohereError `json:"error,omitempty"`
}

// cohereError represents an error in Cohere API response
type cohereError struct {
	Message string `json:"message"`
}

// Complete implements provider.CompletionProvider. Request values take
// precedence over the configured defaults.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("Cohere API key not configured")
	}

	// Convert messages to Cohere format
	cohereMessages := make([]cohereMessage, len(req.Messages))
	for i, msg := range req.Messages {
		cohereMessages[i] = cohereMessage{
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

	payload := cohereRequest{
		Model:       model,
		Messages:    cohereMessages,
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
	httpReq.Header.Set("User-Agent", "deepresearch-client")

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
		return nil, fmt.Errorf("Cohere API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp cohereResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("Cohere API error: %s", resp.Error.Message)
	}

	var sb strings.Builder
	for _, block := range resp.Message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("cohere: %w", errs.ErrEmptyResponse)
	}

	return &provider.Completion{
		Content: sb.String(),
		Model:   model,
	}, nil
}
