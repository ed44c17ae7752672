package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/deepresearch/provider"
)

const classificationPrompt = `You classify research queries by complexity for a deep research pipeline.
Complexity levels:
- "simple": a single factual answer suffices (definitions, dates, names, single figures).
- "moderate": needs explanation or comparison across a few angles.
- "complex": needs multi-faceted analysis, synthesis across sources, or trend evaluation.
Return compact JSON only matching {"complexity":"simple|moderate|complex","confidence":0.0,"reasoning":"..."}.`

const maxVerdictTokens = 512

// llmVerdict is the JSON object expected from the classification model.
type llmVerdict struct {
	Complexity string  `json:"complexity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// refineWithLLM asks the model for a verdict and keeps the heuristic result
// on any provider or parse failure.
func (c *Classifier) refineWithLLM(ctx context.Context, query string, heuristic *Result) *Result {
	refined, err := c.ask(ctx, query)
	if err != nil {
		c.logger.Warn("LLM classification failed, keeping heuristic result", "error", err)
		return heuristic
	}
	return refined
}

func (c *Classifier) ask(ctx context.Context, query string) (*Result, error) {
	resp, err := c.llm.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.Message{
			provider.System(c.cfg.Prompt),
			provider.User(fmt.Sprintf("Query: %s\nReturn JSON only.", query)),
		},
		Model:     c.cfg.Model,
		MaxTokens: maxVerdictTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("classification returned empty response")
	}

	verdict, err := decodeJSON[llmVerdict](resp.Content)
	if err != nil {
		return nil, fmt.Errorf("classification output invalid: %w", err)
	}

	complexity := Complexity(strings.ToLower(strings.TrimSpace(verdict.Complexity)))
	switch complexity {
	case Simple, Moderate, Complex:
	default:
		return nil, fmt.Errorf("classification returned unknown complexity %q", verdict.Complexity)
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	reasoning := strings.TrimSpace(verdict.Reasoning)
	if reasoning == "" {
		reasoning = "classified by model"
	}

	est, model := profileFor(complexity)
	return &Result{
		Complexity:     complexity,
		Confidence:     confidence,
		Reasoning:      reasoning,
		EstimatedTime:  est,
		SuggestedModel: model,
		Source:         SourceLLM,
	}, nil
}
