// Package classifier scores research queries by complexity. Classification
// is heuristic first: three independent scorers vote on simple, moderate and
// complex buckets, and an optional LLM pass refines low-confidence verdicts.
// Classification never fails; every degraded path falls back to the
// heuristic result.
package classifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweetpotato0/deepresearch/pkg/logging"
	"github.com/sweetpotato0/deepresearch/provider"
)

// Complexity buckets a query by how much research it needs.
type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

// Source records which path produced a classification.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceLLM       Source = "llm"
	SourceForced    Source = "forced"
)

// Result is the outcome of classifying one query. Immutable once produced.
type Result struct {
	Complexity     Complexity    `json:"complexity"`
	Confidence     float64       `json:"confidence"`
	Reasoning      string        `json:"reasoning"`
	EstimatedTime  time.Duration `json:"estimated_time"`
	SuggestedModel string        `json:"suggested_model"`
	Source         Source        `json:"source"`
}

// Config controls classification behaviour.
type Config struct {
	FastPathConfidence float64 // Minimum confidence for simple queries to bypass full research
	LLMThreshold       float64 // Heuristic confidence below which the LLM assist is consulted
	Model              string  // Model used for the LLM assist
	Prompt             string  // System prompt for the LLM assist
}

// DefaultConfig returns the default classifier configuration.
func DefaultConfig() *Config {
	return &Config{
		FastPathConfidence: 0.7,
		LLMThreshold:       0.8,
		Model:              "gpt-4o-mini",
		Prompt:             classificationPrompt,
	}
}

// Option customises the classifier configuration.
type Option func(*Config)

// WithFastPathConfidence overrides the fast-path confidence floor.
func WithFastPathConfidence(min float64) Option {
	return func(cfg *Config) {
		if min > 0 && min <= 1 {
			cfg.FastPathConfidence = min
		}
	}
}

// WithLLMThreshold overrides the confidence below which the LLM assist runs.
func WithLLMThreshold(threshold float64) Option {
	return func(cfg *Config) {
		if threshold > 0 && threshold <= 1 {
			cfg.LLMThreshold = threshold
		}
	}
}

// WithModel sets the model used for the LLM assist.
func WithModel(model string) Option {
	return func(cfg *Config) {
		if model != "" {
			cfg.Model = model
		}
	}
}

// WithPrompt overrides the LLM assist system prompt.
func WithPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.Prompt = prompt
		}
	}
}

func applyOptions(cfg *Config, opts []Option) *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Classifier scores query complexity. The LLM client is optional; without
// one, classification is purely heuristic.
type Classifier struct {
	cfg    *Config
	llm    provider.CompletionProvider
	logger *slog.Logger
}

// New creates a classifier. llm may be nil to disable the LLM assist.
func New(llm provider.CompletionProvider, opts ...Option) *Classifier {
	return &Classifier{
		cfg:    applyOptions(nil, opts),
		llm:    llm,
		logger: logging.WithComponent("classifier"),
	}
}

// classifyOptions are per-call knobs for Classify.
type classifyOptions struct {
	useLLM bool
	forced Complexity
}

// ClassifyOption customises a single Classify call.
type ClassifyOption func(*classifyOptions)

// WithLLMAssist requests the LLM refinement pass when the heuristic verdict
// is not confident enough.
func WithLLMAssist() ClassifyOption {
	return func(o *classifyOptions) {
		o.useLLM = true
	}
}

// WithForcedComplexity bypasses scoring entirely and pins the complexity.
func WithForcedComplexity(c Complexity) ClassifyOption {
	return func(o *classifyOptions) {
		o.forced = c
	}
}

// Classify scores a query. It never returns an error: a failing or
// unparseable LLM assist silently degrades to the heuristic result.
func (c *Classifier) Classify(ctx context.Context, query string, opts ...ClassifyOption) *Result {
	var callOpts classifyOptions
	for _, opt := range opts {
		opt(&callOpts)
	}

	if callOpts.forced != "" {
		est, model := profileFor(callOpts.forced)
		return &Result{
			Complexity:     callOpts.forced,
			Confidence:     1.0,
			Reasoning:      "complexity forced by caller",
			EstimatedTime:  est,
			SuggestedModel: model,
			Source:         SourceForced,
		}
	}

	result := scoreHeuristics(query)

	if callOpts.useLLM && c.llm != nil && result.Confidence < c.cfg.LLMThreshold {
		result = c.refineWithLLM(ctx, query, result)
	}

	c.logger.Debug("query classified",
		"complexity", result.Complexity,
		"confidence", result.Confidence,
		"source", result.Source,
	)
	return result
}

// ShouldUseFastPath reports whether a query can skip multi-sub-question
// research: simple complexity at or above the configured confidence floor.
func (c *Classifier) ShouldUseFastPath(result *Result) bool {
	return result.Complexity == Simple && result.Confidence >= c.cfg.FastPathConfidence
}

// profileFor maps a complexity bucket to its expected research duration and
// the search model suited to it.
func profileFor(c Complexity) (time.Duration, string) {
	switch c {
	case Simple:
		return 30 * time.Second, "sonar"
	case Moderate:
		return 2 * time.Minute, "sonar-pro"
	default:
		return 5 * time.Minute, "sonar-reasoning-pro"
	}
}
