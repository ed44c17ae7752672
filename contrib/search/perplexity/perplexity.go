// Package perplexity implements the provider.SearchProvider contract on the
// Perplexity chat completions API, streaming deltas over SSE and collecting
// the citation URLs reported by the final chunks.
package perplexity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sweetpotato0/deepresearch/provider"
)

// Search-tuned Perplexity models.
const (
	ModelSonar             = "sonar"
	ModelSonarPro          = "sonar-pro"
	ModelSonarReasoningPro = "sonar-reasoning-pro"
)

const defaultBaseURL = "https://api.perplexity.ai"

// Config holds Perplexity provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// WithAPIKey sets the API key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithBaseURL sets the API base URL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// DefaultConfig returns the default Perplexity configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: defaultBaseURL,
		Timeout: 60 * time.Second,
	}
}

// FromEnv builds configuration from PERPLEXITY_API_KEY and the optional
// PERPLEXITY_BASE_URL.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.APIKey = os.Getenv("PERPLEXITY_API_KEY")
	if url := os.Getenv("PERPLEXITY_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
	return cfg
}

// Provider streams search-grounded completions from Perplexity.
type Provider struct {
	config     *Config
	httpClient *http.Client
}

// New creates a Perplexity provider. A nil config reads the environment.
func New(config *Config) *Provider {
	if config == nil {
		config = FromEnv()
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements provider.SearchProvider.
func (p *Provider) Name() string { return "perplexity" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

// streamChunk is one SSE data payload. Citations ride at the top level and
// grow as the answer streams; the last chunk carries the complete list.
type streamChunk struct {
	Citations []string `json:"citations"`
	Choices   []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SearchStream implements provider.SearchProvider.
func (p *Provider) SearchStream(ctx context.Context, req provider.SearchRequest) iter.Seq2[*provider.SearchChunk, error] {
	return func(yield func(*provider.SearchChunk, error) bool) {
		if p.config.APIKey == "" {
			yield(nil, fmt.Errorf("perplexity: API key not configured"))
			return
		}

		model := req.Model
		if model == "" {
			model = ModelSonarPro
		}

		var messages []chatMessage
		if req.System != "" {
			messages = append(messages, chatMessage{Role: "system", Content: req.System})
		}
		// Perplexity requires strictly alternating user/assistant turns, so
		// prior-round findings are folded into the user message.
		content := req.Query
		if req.Context != "" {
			content = req.Context + "\n\nQuestion: " + req.Query
		}
		messages = append(messages, chatMessage{Role: "user", Content: content})

		body, err := json.Marshal(chatRequest{
			Model:       model,
			Messages:    messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			Stream:      true,
		})
		if err != nil {
			yield(nil, fmt.Errorf("perplexity: failed to marshal request: %w", err))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.config.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			yield(nil, fmt.Errorf("perplexity: failed to create request: %w", err))
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			yield(nil, fmt.Errorf("perplexity: request failed: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			yield(nil, fmt.Errorf("perplexity: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
			return
		}

		var (
			sb        strings.Builder
			citations []string
		)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				break
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				yield(nil, fmt.Errorf("perplexity: API error: %s", chunk.Error.Message))
				return
			}
			if len(chunk.Citations) > 0 {
				citations = chunk.Citations
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				sb.WriteString(delta)
				if !yield(&provider.SearchChunk{Delta: delta}, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			yield(nil, fmt.Errorf("perplexity: stream error: %w", err))
			return
		}
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		yield(&provider.SearchChunk{
			Content:   sb.String(),
			Citations: citations,
			Done:      true,
		}, nil)
	}
}
