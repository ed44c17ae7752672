package planner

import (
	"fmt"

	errs "github.com/sweetpotato0/deepresearch/errors"
)

// Add appends sub-questions to the plan. Duplicate IDs, references to
// unknown sub-questions and dependency cycles are rejected; on error the
// plan is left unchanged.
func (p *Plan) Add(subs ...SubQuestion) error {
	candidate := make([]SubQuestion, 0, len(p.SubQuestions)+len(subs))
	candidate = append(candidate, p.SubQuestions...)
	for _, sq := range subs {
		if sq.Status == "" {
			sq.Status = StatusPending
		}
		candidate = append(candidate, sq)
	}

	if _, err := sortByDependency(candidate); err != nil {
		return err
	}

	p.SubQuestions = candidate
	return nil
}

// NextID returns the next sequential sub-question identifier.
func (p *Plan) NextID() string {
	return subID(len(p.SubQuestions) + 1)
}

// AddFollowUps appends gap-driven sub-questions with fresh IDs and no
// dependencies, returning the sub-questions as stored.
func (p *Plan) AddFollowUps(subs []SubQuestion) []SubQuestion {
	added := make([]SubQuestion, 0, len(subs))
	for _, sq := range subs {
		sq.ID = p.NextID()
		sq.DependsOn = nil
		sq.Status = StatusPending
		p.SubQuestions = append(p.SubQuestions, sq)
		added = append(added, sq)
	}
	return added
}

// SortByDependency returns the sub-questions in topological order, stable by
// insertion order among nodes whose dependencies are already placed.
func (p *Plan) SortByDependency() ([]SubQuestion, error) {
	return sortByDependency(p.SubQuestions)
}

func sortByDependency(subs []SubQuestion) ([]SubQuestion, error) {
	index := make(map[string]bool, len(subs))
	for _, sq := range subs {
		if index[sq.ID] {
			return nil, fmt.Errorf("duplicate sub-question id %q: %w", sq.ID, errs.ErrInvalidInput)
		}
		index[sq.ID] = true
	}
	for _, sq := range subs {
		for _, dep := range sq.DependsOn {
			if !index[dep] {
				return nil, fmt.Errorf("sub-question %q depends on unknown %q: %w", sq.ID, dep, errs.ErrUnknownDependency)
			}
		}
	}

	sorted := make([]SubQuestion, 0, len(subs))
	placed := make(map[string]bool, len(subs))
	for len(sorted) < len(subs) {
		progressed := false
		for _, sq := range subs {
			if placed[sq.ID] {
				continue
			}
			ready := true
			for _, dep := range sq.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, sq)
				placed[sq.ID] = true
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("plan has %d unorderable sub-question(s): %w", len(subs)-len(sorted), errs.ErrCyclicDependency)
		}
	}
	return sorted, nil
}

// ParallelBatch returns the pending sub-questions whose dependencies are all
// in done. This is the sole feed into the search pool: sub-questions with
// unmet dependencies are withheld regardless of pool capacity.
func (p *Plan) ParallelBatch(done map[string]bool) []SubQuestion {
	var batch []SubQuestion
	for _, sq := range p.SubQuestions {
		if sq.Status != StatusPending || done[sq.ID] {
			continue
		}
		ready := true
		for _, dep := range sq.DependsOn {
			if !done[dep] {
				ready = false
				break
			}
		}
		if ready {
			batch = append(batch, sq)
		}
	}
	return batch
}

// UpdateStatus is the sole status mutator. Transitions are monotonic:
// pending to in_progress or failed, in_progress to completed or failed.
func (p *Plan) UpdateStatus(id string, next Status) error {
	for i := range p.SubQuestions {
		if p.SubQuestions[i].ID != id {
			continue
		}
		current := p.SubQuestions[i].Status
		if !validTransition(current, next) {
			return fmt.Errorf("sub-question %q: %q to %q: %w", id, current, next, errs.ErrInvalidTransition)
		}
		p.SubQuestions[i].Status = next
		return nil
	}
	return fmt.Errorf("sub-question %q: %w", id, errs.ErrNotFound)
}

func validTransition(current, next Status) bool {
	switch current {
	case StatusPending:
		return next == StatusInProgress || next == StatusFailed
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Get returns a copy of the sub-question with the given ID.
func (p *Plan) Get(id string) (SubQuestion, bool) {
	for _, sq := range p.SubQuestions {
		if sq.ID == id {
			return sq, true
		}
	}
	return SubQuestion{}, false
}

// Pending returns all sub-questions still waiting to run.
func (p *Plan) Pending() []SubQuestion {
	var pending []SubQuestion
	for _, sq := range p.SubQuestions {
		if sq.Status == StatusPending {
			pending = append(pending, sq)
		}
	}
	return pending
}

// CompletedSet returns the IDs of completed sub-questions, in the shape
// ParallelBatch consumes.
func (p *Plan) CompletedSet() map[string]bool {
	done := make(map[string]bool)
	for _, sq := range p.SubQuestions {
		if sq.Status == StatusCompleted {
			done[sq.ID] = true
		}
	}
	return done
}

// Starved reports whether a sub-question can never run because one of its
// direct dependencies failed.
func (p *Plan) Starved(sq SubQuestion) bool {
	for _, dep := range sq.DependsOn {
		if d, ok := p.Get(dep); ok && d.Status == StatusFailed {
			return true
		}
	}
	return false
}
