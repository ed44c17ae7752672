package provider

import (
	"context"
	"strings"
	"testing"
)

func TestFromEnvDefault(t *testing.T) {
	t.Setenv("DEEPRESEARCH_COMPLETION_PROVIDER", "")

	p, err := FromEnv(context.Background())
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("default provider = %q, want openai", p.Name())
	}
}

func TestFromEnvByName(t *testing.T) {
	for _, name := range []string{"openai", "claude", "groq", "cohere"} {
		t.Setenv("DEEPRESEARCH_COMPLETION_PROVIDER", name)

		p, err := FromEnv(context.Background())
		if err != nil {
			t.Fatalf("FromEnv(%s): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("provider = %q, want %q", p.Name(), name)
		}
	}
}

func TestFromEnvUnknown(t *testing.T) {
	t.Setenv("DEEPRESEARCH_COMPLETION_PROVIDER", "eliza")

	if _, err := FromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "eliza") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}
