package synthesis

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/search"
)

// Priority ranks how badly a gap needs a follow-up search.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Gap is a detected deficiency in the synthesized coverage.
type Gap struct {
	ID            string   `json:"id"`
	SubQuestionID string   `json:"sub_question_id"`
	Description   string   `json:"description"`
	Priority      Priority `json:"priority"`
	FollowUp      string   `json:"follow_up"`
	Resolved      bool     `json:"resolved"`
}

// DetectGaps inspects a round's outcome for coverage deficiencies: every
// failed sub-question raises a high-priority gap, every low-confidence note
// a medium one, and every thinly-cited note a low one.
func DetectGaps(plan *planner.Plan, notes []search.Note, failures []search.Failure, cfg *Config) []Gap {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	questions := make(map[string]string)
	if plan != nil {
		for _, sq := range plan.SubQuestions {
			questions[sq.ID] = sq.Question
		}
	}

	var gaps []Gap
	for _, f := range failures {
		question := f.Question
		if question == "" {
			question = questions[f.SubQuestionID]
		}
		gaps = append(gaps, Gap{
			ID:            uuid.NewString(),
			SubQuestionID: f.SubQuestionID,
			Description:   fmt.Sprintf("sub-question %s was not answered: %s", f.SubQuestionID, f.Reason),
			Priority:      PriorityHigh,
			FollowUp:      question,
		})
	}

	for _, note := range notes {
		question := questions[note.SubQuestionID]
		if question == "" {
			question = note.SubQuestionID
		}
		if note.Confidence < cfg.LowConfidence {
			gaps = append(gaps, Gap{
				ID:            uuid.NewString(),
				SubQuestionID: note.SubQuestionID,
				Description:   fmt.Sprintf("low confidence (%.2f) for sub-question %s", note.Confidence, note.SubQuestionID),
				Priority:      PriorityMedium,
				FollowUp:      "More detailed and specific information on: " + question,
			})
		}
		if len(note.Citations) < cfg.MinCitations {
			gaps = append(gaps, Gap{
				ID:            uuid.NewString(),
				SubQuestionID: note.SubQuestionID,
				Description:   fmt.Sprintf("only %d citation(s) for sub-question %s", len(note.Citations), note.SubQuestionID),
				Priority:      PriorityLow,
				FollowUp:      "Sources and evidence for: " + question,
			})
		}
	}
	return gaps
}

// ShouldProceedToRound2 reports whether a follow-up round is worthwhile:
// only when an unresolved high-priority gap remains and at least one note
// exists to build on. The round budget itself is the orchestrator's.
func ShouldProceedToRound2(gaps []Gap, notes []search.Note) bool {
	if len(notes) == 0 {
		return false
	}
	for _, g := range gaps {
		if !g.Resolved && g.Priority == PriorityHigh {
			return true
		}
	}
	return false
}

// FollowUpQueries converts the most pressing unresolved gaps into new
// dependency-free sub-questions, ordered high to low priority, at most max
// of them and at most one per sub-question. IDs are assigned when the
// caller appends them to the plan.
func FollowUpQueries(gaps []Gap, max int) []planner.SubQuestion {
	if max <= 0 {
		max = DefaultConfig().MaxFollowUps
	}

	ranked := make([]Gap, 0, len(gaps))
	for _, g := range gaps {
		if !g.Resolved && g.FollowUp != "" {
			ranked = append(ranked, g)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return rank(ranked[i].Priority) < rank(ranked[j].Priority)
	})

	subs := make([]planner.SubQuestion, 0, max)
	seen := make(map[string]bool, len(ranked))
	for _, g := range ranked {
		if len(subs) >= max {
			break
		}
		if seen[g.SubQuestionID] {
			continue
		}
		seen[g.SubQuestionID] = true
		subs = append(subs, planner.SubQuestion{
			Question: g.FollowUp,
			GapID:    g.ID,
		})
	}
	return subs
}

func rank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}
