// Package search executes sub-question searches against a streaming search
// provider. Execute performs exactly one provider call, ExecuteWithRetry
// layers bounded exponential backoff on top, and Pool fans a batch of
// sub-questions out across a bounded set of workers.
package search

import (
	"time"

	"github.com/sweetpotato0/deepresearch/citation"
	"github.com/sweetpotato0/deepresearch/planner"
)

// DefaultSystemPrompt instructs the search provider to produce thorough,
// citable findings.
const DefaultSystemPrompt = `You are a research assistant gathering thorough, factual information.
Research the question below. Prefer primary and recent sources, include
concrete figures and dates where they exist, quote key claims, and structure
longer findings as lists. Cite every source you draw on.`

// Config controls search execution and pooling.
type Config struct {
	Concurrency    int           // maximum searches in flight
	MaxRetries     int           // retries after the first attempt
	RetryBaseDelay time.Duration // first backoff delay, doubled per retry
	Model          string
	MaxTokens      int
	Temperature    float64
	SystemPrompt   string
}

// DefaultConfig returns the search configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:    3,
		MaxRetries:     2,
		RetryBaseDelay: time.Second,
		Model:          "sonar-pro",
		MaxTokens:      2048,
		Temperature:    0.2,
		SystemPrompt:   DefaultSystemPrompt,
	}
}

// Note is the cited outcome of one successfully searched sub-question.
type Note struct {
	ID            string              `json:"id"`
	SessionID     string              `json:"session_id"`
	SubQuestionID string              `json:"sub_question_id"`
	Content       string              `json:"content"`
	Citations     []citation.Citation `json:"citations"`
	Confidence    float64             `json:"confidence"`
	Attempts      int                 `json:"attempts"`
	Duration      time.Duration       `json:"duration"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Failure records a sub-question whose search produced no note.
type Failure struct {
	SubQuestionID string        `json:"sub_question_id"`
	Question      string        `json:"question"`
	Reason        string        `json:"reason"`
	Attempts      int           `json:"attempts"`
	Duration      time.Duration `json:"duration"`
}

// Callbacks receive pool progress. The pool invokes every method from its
// control loop, one call at a time, so implementations need no locking.
type Callbacks interface {
	OnStart(sq planner.SubQuestion)
	OnProgress(sq planner.SubQuestion, delta string)
	OnComplete(sq planner.SubQuestion, note *Note)
	OnError(sq planner.SubQuestion, failure *Failure)
}

// NopCallbacks ignores all pool progress.
type NopCallbacks struct{}

func (NopCallbacks) OnStart(planner.SubQuestion)            {}
func (NopCallbacks) OnProgress(planner.SubQuestion, string) {}
func (NopCallbacks) OnComplete(planner.SubQuestion, *Note)  {}
func (NopCallbacks) OnError(planner.SubQuestion, *Failure)  {}
