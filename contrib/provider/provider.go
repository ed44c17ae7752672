// Package provider assembles the ready-made completion providers under
// contrib. FromEnv picks one by name so commands can switch providers
// without code changes.
package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/sweetpotato0/deepresearch/contrib/provider/claude"
	"github.com/sweetpotato0/deepresearch/contrib/provider/cohere"
	"github.com/sweetpotato0/deepresearch/contrib/provider/gemini"
	"github.com/sweetpotato0/deepresearch/contrib/provider/groq"
	"github.com/sweetpotato0/deepresearch/contrib/provider/openai"
	core "github.com/sweetpotato0/deepresearch/provider"
)

// FromEnv builds the completion provider named by
// DEEPRESEARCH_COMPLETION_PROVIDER: openai (the default), claude, gemini,
// groq, or cohere. API keys come from each vendor's usual environment
// variable.
func FromEnv(ctx context.Context) (core.CompletionProvider, error) {
	name := os.Getenv("DEEPRESEARCH_COMPLETION_PROVIDER")
	if name == "" {
		name = "openai"
	}

	switch name {
	case "openai":
		return openai.New(nil), nil
	case "claude":
		return claude.New(claude.DefaultConfig(os.Getenv("ANTHROPIC_API_KEY"), "")), nil
	case "gemini":
		return gemini.New(ctx, gemini.DefaultConfig(os.Getenv("GEMINI_API_KEY")))
	case "groq":
		return groq.New(groq.DefaultConfig(os.Getenv("GROQ_API_KEY"))), nil
	case "cohere":
		return cohere.New(cohere.DefaultConfig(os.Getenv("CO_API_KEY"))), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", name)
	}
}
