package research

import (
	"time"

	"github.com/google/uuid"

	"github.com/sweetpotato0/deepresearch/citation"
	"github.com/sweetpotato0/deepresearch/classifier"
	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/search"
	"github.com/sweetpotato0/deepresearch/synthesis"
)

// Status is the lifecycle phase of a research session.
type Status string

const (
	StatusPlanning     Status = "planning"
	StatusSearching    Status = "searching"
	StatusSynthesizing Status = "synthesizing"
	StatusGapAnalysis  Status = "gap_analysis"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
)

// Session is the complete record of one research run. The orchestrator is
// its single writer; stores and event sinks only ever see snapshots.
type Session struct {
	ID             string              `json:"id"`
	Query          string              `json:"query"`
	Status         Status              `json:"status"`
	Classification *classifier.Result  `json:"classification,omitempty"`
	Plan           *planner.Plan       `json:"plan,omitempty"`
	Notes          []search.Note       `json:"notes,omitempty"`
	Failures       []search.Failure    `json:"failures,omitempty"`
	Answer         string              `json:"answer,omitempty"`
	Citations      []citation.Citation `json:"citations,omitempty"`
	Confidence     float64             `json:"confidence"`
	Gaps           []synthesis.Gap     `json:"gaps,omitempty"`
	Round          int                 `json:"round"`
	FastPath       bool                `json:"fast_path"`
	Error          string              `json:"error,omitempty"`
	Metrics        Metrics             `json:"metrics"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
}

func newSession(query string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusPlanning,
		Round:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy safe to hand to stores and sinks while the
// orchestrator keeps mutating the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Classification != nil {
		c := *s.Classification
		out.Classification = &c
	}
	if s.Plan != nil {
		p := *s.Plan
		p.SubQuestions = cloneSubQuestions(s.Plan.SubQuestions)
		out.Plan = &p
	}
	out.Notes = cloneNotes(s.Notes)
	out.Failures = append([]search.Failure(nil), s.Failures...)
	out.Citations = append([]citation.Citation(nil), s.Citations...)
	out.Gaps = append([]synthesis.Gap(nil), s.Gaps...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func cloneSubQuestions(subs []planner.SubQuestion) []planner.SubQuestion {
	if subs == nil {
		return nil
	}
	out := make([]planner.SubQuestion, len(subs))
	copy(out, subs)
	for i := range out {
		out[i].DependsOn = append([]string(nil), out[i].DependsOn...)
	}
	return out
}

func cloneNotes(notes []search.Note) []search.Note {
	if notes == nil {
		return nil
	}
	out := make([]search.Note, len(notes))
	copy(out, notes)
	for i := range out {
		out[i].Citations = append([]citation.Citation(nil), out[i].Citations...)
	}
	return out
}
