package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/deepresearch/citation"
	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/pkg/logging"
	"github.com/sweetpotato0/deepresearch/pkg/telemetry"
	"github.com/sweetpotato0/deepresearch/provider"
)

// Input describes one sub-question search.
type Input struct {
	SubQuestionID string
	Question      string
	Context       string             // findings accumulated in earlier rounds
	OnDelta       func(delta string) // optional, invoked per streamed chunk
}

// Output is the raw result of a single provider call.
type Output struct {
	Content   string
	Citations []citation.Citation
	Duration  time.Duration
}

// Executor performs single search calls against a streaming provider.
// Retry is layered separately by ExecuteWithRetry.
type Executor struct {
	cfg    *Config
	search provider.SearchProvider
	logger *slog.Logger
}

// NewExecutor returns an executor for the given provider. A nil cfg selects
// DefaultConfig.
func NewExecutor(p provider.SearchProvider, cfg *Config) *Executor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Executor{
		cfg:    cfg,
		search: p,
		logger: logging.WithComponent("search"),
	}
}

// Execute issues exactly one streaming search call, accumulating deltas and
// the final citation list. It returns ErrEmptyResponse when the stream
// finishes without content.
func (e *Executor) Execute(ctx context.Context, in Input) (*Output, error) {
	ctx, span := telemetry.StartSpan(ctx, "search.execute",
		attribute.String("sub_question_id", in.SubQuestionID))

	start := time.Now()
	req := provider.SearchRequest{
		Query:       in.Question,
		Model:       e.cfg.Model,
		System:      e.cfg.SystemPrompt,
		Context:     in.Context,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	}

	var (
		sb      strings.Builder
		content string
		rawURLs []string
	)
	for chunk, err := range e.search.SearchStream(ctx, req) {
		if err != nil {
			telemetry.End(span, err)
			return nil, err
		}
		if chunk == nil {
			continue
		}
		if chunk.Delta != "" {
			sb.WriteString(chunk.Delta)
			if in.OnDelta != nil {
				in.OnDelta(chunk.Delta)
			}
		}
		if chunk.Done {
			content = chunk.Content
			rawURLs = chunk.Citations
		}
	}
	if content == "" {
		content = sb.String()
	}

	if strings.TrimSpace(content) == "" {
		err := fmt.Errorf("search %s: %w", in.SubQuestionID, errs.ErrEmptyResponse)
		telemetry.End(span, err)
		return nil, err
	}

	out := &Output{
		Content:   content,
		Citations: citation.Transform(rawURLs),
		Duration:  time.Since(start),
	}
	span.SetAttributes(
		attribute.Int("content_chars", len(out.Content)),
		attribute.Int("citations", len(out.Citations)),
	)
	telemetry.End(span, nil)

	e.logger.Debug("search finished",
		"sub_question_id", in.SubQuestionID,
		"content_chars", len(out.Content),
		"citations", len(out.Citations),
		"duration", out.Duration)
	return out, nil
}
