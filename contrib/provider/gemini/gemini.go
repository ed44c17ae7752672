// Package gemini implements provider.CompletionProvider on the official
// Google Generative AI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/provider"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "gemini-2.0-flash",
		MaxTokens:   2048,
		Temperature: 0.2,
	}
}

// Provider implements provider.CompletionProvider for Google Gemini
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a new Gemini provider. The SDK dials the service when the
// client is created, so New takes a context and can fail.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Provider{
		config: config,
		client: client,
	}, nil
}

// Name implements provider.CompletionProvider.
func (p *Provider) Name() string { return "gemini" }

// Close releases the underlying client connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Complete implements provider.CompletionProvider. System messages become
// the model's system instruction; the remaining turns form the chat history
// with the final user message sent as the prompt.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	name := req.Model
	if name == "" {
		name = p.config.Model
	}
	model := p.client.GenerativeModel(name)

	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	} else if p.config.Temperature > 0 {
		model.SetTemperature(float32(p.config.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	} else if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.config.MaxTokens))
	}

	var systemPrompts []string
	var conversation []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case provider.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case provider.RoleUser:
			conversation = append(conversation, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		case provider.RoleAssistant:
			conversation = append(conversation, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}

	if len(systemPrompts) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(systemPrompts, "\n"))},
		}
	}

	if len(conversation) == 0 || conversation[len(conversation)-1].Role != "user" {
		return nil, fmt.Errorf("gemini: request must end with a user message")
	}
	last := conversation[len(conversation)-1]
	history := conversation[:len(conversation)-1]

	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: %w", errs.ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("gemini: %w", errs.ErrEmptyResponse)
	}

	return &provider.Completion{
		Content: sb.String(),
		Model:   name,
	}, nil
}
