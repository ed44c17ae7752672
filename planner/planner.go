// Package planner decomposes a research query into a dependency-ordered set
// of sub-questions. Decomposition is template based and fully deterministic:
// no I/O, no model calls, so plans are reproducible and cheap to test.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweetpotato0/deepresearch/classifier"
)

// Status tracks a sub-question through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// SubQuestion is one independently searchable fragment of the research query.
type SubQuestion struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	DependsOn []string `json:"depends_on,omitempty"`
	Status    Status   `json:"status"`
	GapID     string   `json:"gap_id,omitempty"` // set when spawned from a gap in round 2
}

// Plan is the dependency graph of sub-questions for one session.
// Append-only: follow-up sub-questions are added, never replace existing ones.
type Plan struct {
	SessionID    string                `json:"session_id"`
	Query        string                `json:"query"`
	Complexity   classifier.Complexity `json:"complexity"`
	SubQuestions []SubQuestion         `json:"sub_questions"`
	CreatedAt    time.Time             `json:"created_at"`
}

// Config sizes plans per complexity bucket.
type Config struct {
	SimpleCount   int
	ModerateCount int
	ComplexCount  int
}

// DefaultConfig returns the default plan sizes.
func DefaultConfig() *Config {
	return &Config{
		SimpleCount:   2,
		ModerateCount: 4,
		ComplexCount:  6,
	}
}

// template produces one sub-question. An empty format means the raw query is
// used verbatim. dependsOn holds indexes of earlier templates in the same set.
type template struct {
	format    string
	dependsOn []int
}

var simpleTemplates = []template{
	{format: ""},
	{format: "Key facts and recent developments about %s"},
}

var moderateTemplates = []template{
	{format: "Background and definition of %s"},
	{format: "Current state and key players in %s"},
	{format: "Benefits and drawbacks of %s", dependsOn: []int{0}},
	{format: "Recent developments and future outlook for %s", dependsOn: []int{1}},
}

var complexTemplates = []template{
	{format: "Background and fundamentals of %s"},
	{format: "Current landscape and key players in %s"},
	{format: "Main drivers and enabling factors behind %s", dependsOn: []int{0}},
	{format: "Challenges, risks and limitations of %s", dependsOn: []int{0, 1}},
	{format: "Alternatives and competing approaches to %s", dependsOn: []int{1}},
	{format: "Future outlook and open questions for %s", dependsOn: []int{2, 3}},
}

// CreatePlan builds a plan sized to the classified complexity. cfg may be nil
// for defaults.
func CreatePlan(sessionID, query string, res *classifier.Result, cfg *Config) *Plan {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	complexity := classifier.Complex
	if res != nil && res.Complexity != "" {
		complexity = res.Complexity
	}

	templates, count := simpleTemplates, cfg.SimpleCount
	switch complexity {
	case classifier.Moderate:
		templates, count = moderateTemplates, cfg.ModerateCount
	case classifier.Complex:
		templates, count = complexTemplates, cfg.ComplexCount
	}
	if count < 1 {
		count = 1
	}
	if count > len(templates) {
		count = len(templates)
	}

	topic := Topic(query)
	subs := make([]SubQuestion, 0, count)
	for i, tpl := range templates[:count] {
		question := strings.TrimSpace(query)
		if tpl.format != "" {
			question = fmt.Sprintf(tpl.format, topic)
		}

		var deps []string
		for _, d := range tpl.dependsOn {
			deps = append(deps, subID(d+1))
		}

		subs = append(subs, SubQuestion{
			ID:        subID(i + 1),
			Question:  question,
			DependsOn: deps,
			Status:    StatusPending,
		})
	}

	return &Plan{
		SessionID:    sessionID,
		Query:        query,
		Complexity:   complexity,
		SubQuestions: subs,
		CreatedAt:    time.Now().UTC(),
	}
}

// FastPathPlan builds a single-question plan for queries that skip
// decomposition entirely.
func FastPathPlan(sessionID, query string) *Plan {
	return &Plan{
		SessionID:  sessionID,
		Query:      query,
		Complexity: classifier.Simple,
		SubQuestions: []SubQuestion{
			{
				ID:       subID(1),
				Question: strings.TrimSpace(query),
				Status:   StatusPending,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func subID(n int) string {
	return fmt.Sprintf("sq-%d", n)
}

// Ordered longest-first so "what is the" wins over "what is".
var interrogativePrefixes = []string{
	"tell me about the", "tell me about",
	"what is the", "what are the", "what is", "what are",
	"who is the", "who was the", "who is", "who was",
	"when was the", "when did the", "when was", "when did",
	"where is the", "where is",
	"how does the", "how does", "how do", "how to",
	"why does the", "why does", "why do", "why is the", "why is",
	"explain the", "explain",
	"describe the", "describe",
	"analyze the", "analyze",
	"define",
}

// Topic reduces a query to its subject: the leading interrogative phrase and
// trailing punctuation are stripped. Falls back to the trimmed query when
// stripping would leave nothing.
func Topic(query string) string {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	for _, prefix := range interrogativePrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			trimmed = trimmed[len(prefix)+1:]
			break
		}
	}

	trimmed = strings.TrimSpace(strings.TrimRight(trimmed, "?!. "))
	if trimmed == "" {
		return strings.TrimSpace(strings.TrimRight(query, "?!. "))
	}
	return trimmed
}
