package research

import (
	"testing"
	"time"

	"github.com/sweetpotato0/deepresearch/citation"
	"github.com/sweetpotato0/deepresearch/classifier"
	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/search"
	"github.com/sweetpotato0/deepresearch/synthesis"
)

func TestNewSession(t *testing.T) {
	s := newSession("how do tides work")

	if s.ID == "" {
		t.Error("ID not assigned")
	}
	if s.Query != "how do tides work" {
		t.Errorf("Query = %q", s.Query)
	}
	if s.Status != StatusPlanning {
		t.Errorf("Status = %q, want planning", s.Status)
	}
	if s.Round != 1 {
		t.Errorf("Round = %d, want 1", s.Round)
	}
	if s.CreatedAt.IsZero() || !s.CreatedAt.Equal(s.UpdatedAt) {
		t.Errorf("timestamps = %v / %v, want equal and set", s.CreatedAt, s.UpdatedAt)
	}
	if s.CompletedAt != nil {
		t.Error("CompletedAt set on a fresh session")
	}

	other := newSession("how do tides work")
	if other.ID == s.ID {
		t.Error("two sessions share an ID")
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	done := time.Now().UTC()
	s := &Session{
		ID:     "s-1",
		Query:  "q",
		Status: StatusComplete,
		Classification: &classifier.Result{
			Complexity: classifier.Moderate,
			Confidence: 0.8,
		},
		Plan: &planner.Plan{
			SessionID: "s-1",
			SubQuestions: []planner.SubQuestion{
				{ID: "sq-1", Question: "a", Status: planner.StatusCompleted},
				{ID: "sq-2", Question: "b", DependsOn: []string{"sq-1"}, Status: planner.StatusPending},
			},
		},
		Notes: []search.Note{
			{
				SubQuestionID: "sq-1",
				Content:       "finding",
				Citations:     []citation.Citation{{URL: "https://example.com", DisplayNumber: 1}},
			},
		},
		Failures:    []search.Failure{{SubQuestionID: "sq-2", Reason: "timeout"}},
		Citations:   []citation.Citation{{URL: "https://example.com", DisplayNumber: 1}},
		Gaps:        []synthesis.Gap{{ID: "g-1", SubQuestionID: "sq-2", Priority: synthesis.PriorityHigh}},
		CompletedAt: &done,
	}

	c := s.Clone()

	// Mutate every shared-looking structure on the original.
	s.Classification.Confidence = 0.1
	s.Plan.SubQuestions[0].Status = planner.StatusFailed
	s.Plan.SubQuestions[1].DependsOn[0] = "sq-9"
	s.Notes[0].Content = "mutated"
	s.Notes[0].Citations[0].URL = "https://mutated.example"
	s.Failures[0].Reason = "mutated"
	s.Citations[0].DisplayNumber = 9
	s.Gaps[0].Resolved = true
	*s.CompletedAt = done.Add(time.Hour)

	if c.Classification.Confidence != 0.8 {
		t.Error("Classification shared")
	}
	if c.Plan.SubQuestions[0].Status != planner.StatusCompleted {
		t.Error("Plan sub-questions shared")
	}
	if c.Plan.SubQuestions[1].DependsOn[0] != "sq-1" {
		t.Error("DependsOn shared")
	}
	if c.Notes[0].Content != "finding" {
		t.Error("Notes shared")
	}
	if c.Notes[0].Citations[0].URL != "https://example.com" {
		t.Error("note Citations shared")
	}
	if c.Failures[0].Reason != "timeout" {
		t.Error("Failures shared")
	}
	if c.Citations[0].DisplayNumber != 1 {
		t.Error("Citations shared")
	}
	if c.Gaps[0].Resolved {
		t.Error("Gaps shared")
	}
	if !c.CompletedAt.Equal(done) {
		t.Error("CompletedAt shared")
	}
}

func TestSessionCloneNil(t *testing.T) {
	var s *Session
	if s.Clone() != nil {
		t.Error("Clone of nil session should be nil")
	}

	empty := newSession("q")
	c := empty.Clone()
	if c.Classification != nil || c.Plan != nil || c.Notes != nil || c.CompletedAt != nil {
		t.Errorf("clone invented fields: %+v", c)
	}
}
