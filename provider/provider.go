// Package provider defines the contracts between the research pipeline and
// the external LLM services it calls. Concrete implementations live under
// contrib.
package provider

import (
	"context"
	"iter"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// CompletionRequest describes one non-streaming chat completion.
type CompletionRequest struct {
	Messages    []Message
	Model       string // overrides the provider default when set
	Temperature float64
	MaxTokens   int
}

// Completion is a provider's full response to a CompletionRequest.
type Completion struct {
	Content string
	Model   string
}

// CompletionProvider produces chat completions.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// SearchRequest describes one web-search-grounded completion.
type SearchRequest struct {
	Query       string
	Model       string
	System      string
	Context     string // findings from earlier rounds, may be empty
	MaxTokens   int
	Temperature float64
}

// SearchChunk is one increment of a streaming search response. Intermediate
// chunks carry Delta; the final chunk has Done set along with the fully
// accumulated Content and the raw citation URLs.
type SearchChunk struct {
	Delta     string
	Content   string
	Citations []string
	Done      bool
}

// SearchProvider streams search-grounded completions. The sequence ends
// after the Done chunk or the first error; implementations stop promptly
// when ctx is cancelled.
type SearchProvider interface {
	Name() string
	SearchStream(ctx context.Context, req SearchRequest) iter.Seq2[*SearchChunk, error]
}
