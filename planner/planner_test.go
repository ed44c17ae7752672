package planner

import (
	"errors"
	"testing"

	"github.com/sweetpotato0/deepresearch/classifier"
	errs "github.com/sweetpotato0/deepresearch/errors"
)

func TestCreatePlanSizes(t *testing.T) {
	tests := []struct {
		name       string
		complexity classifier.Complexity
		wantCount  int
	}{
		{
			name:       "simple plan has two sub-questions",
			complexity: classifier.Simple,
			wantCount:  2,
		},
		{
			name:       "moderate plan has four sub-questions",
			complexity: classifier.Moderate,
			wantCount:  4,
		},
		{
			name:       "complex plan has six sub-questions",
			complexity: classifier.Complex,
			wantCount:  6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &classifier.Result{Complexity: tt.complexity}
			plan := CreatePlan("sess-1", "What is the impact of AI on healthcare?", res, nil)

			if len(plan.SubQuestions) != tt.wantCount {
				t.Fatalf("sub-question count = %d, want %d", len(plan.SubQuestions), tt.wantCount)
			}
			if plan.Complexity != tt.complexity {
				t.Errorf("Complexity = %q, want %q", plan.Complexity, tt.complexity)
			}

			seen := map[string]int{}
			for i, sq := range plan.SubQuestions {
				if sq.Status != StatusPending {
					t.Errorf("sub-question %s status = %q, want %q", sq.ID, sq.Status, StatusPending)
				}
				if sq.Question == "" {
					t.Errorf("sub-question %s has empty question", sq.ID)
				}
				if _, dup := seen[sq.ID]; dup {
					t.Errorf("duplicate sub-question id %s", sq.ID)
				}
				seen[sq.ID] = i
				for _, dep := range sq.DependsOn {
					pos, ok := seen[dep]
					if !ok || pos >= i {
						t.Errorf("sub-question %s depends on %s which is not an earlier sub-question", sq.ID, dep)
					}
				}
			}

			// Round one must always have work to do.
			if len(plan.SubQuestions[0].DependsOn) != 0 || len(plan.SubQuestions[1].DependsOn) != 0 {
				t.Errorf("first two sub-questions must be dependency-free")
			}

			if _, err := plan.SortByDependency(); err != nil {
				t.Errorf("SortByDependency() error = %v", err)
			}
		})
	}
}

func TestCreatePlanDefaultsToComplex(t *testing.T) {
	plan := CreatePlan("sess-1", "some query", nil, nil)
	if plan.Complexity != classifier.Complex {
		t.Errorf("Complexity = %q, want %q", plan.Complexity, classifier.Complex)
	}
	if len(plan.SubQuestions) != 6 {
		t.Errorf("sub-question count = %d, want 6", len(plan.SubQuestions))
	}
}

func TestCreatePlanConfigurableCounts(t *testing.T) {
	cfg := &Config{SimpleCount: 1, ModerateCount: 3, ComplexCount: 99}

	simple := CreatePlan("s", "What is Go?", &classifier.Result{Complexity: classifier.Simple}, cfg)
	if len(simple.SubQuestions) != 1 {
		t.Errorf("simple count = %d, want 1", len(simple.SubQuestions))
	}

	moderate := CreatePlan("s", "How does Go work?", &classifier.Result{Complexity: classifier.Moderate}, cfg)
	if len(moderate.SubQuestions) != 3 {
		t.Errorf("moderate count = %d, want 3", len(moderate.SubQuestions))
	}

	// Counts beyond the template set are capped rather than invented.
	complexPlan := CreatePlan("s", "Analyze Go", &classifier.Result{Complexity: classifier.Complex}, cfg)
	if len(complexPlan.SubQuestions) != 6 {
		t.Errorf("complex count = %d, want 6", len(complexPlan.SubQuestions))
	}
}

func TestCreatePlanEmbedsTopic(t *testing.T) {
	res := &classifier.Result{Complexity: classifier.Simple}
	plan := CreatePlan("sess-1", "What is the impact of AI on healthcare?", res, nil)

	if plan.SubQuestions[0].Question != "What is the impact of AI on healthcare?" {
		t.Errorf("first sub-question = %q, want the raw query", plan.SubQuestions[0].Question)
	}
	want := "Key facts and recent developments about impact of AI on healthcare"
	if plan.SubQuestions[1].Question != want {
		t.Errorf("second sub-question = %q, want %q", plan.SubQuestions[1].Question, want)
	}
}

func TestTopic(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "strips what is",
			query: "What is photosynthesis?",
			want:  "photosynthesis",
		},
		{
			name:  "longest prefix wins",
			query: "What is the capital of France?",
			want:  "capital of France",
		},
		{
			name:  "strips how does",
			query: "How does TCP congestion control work?",
			want:  "TCP congestion control work",
		},
		{
			name:  "no prefix leaves query intact",
			query: "quantum computing hardware roadmap",
			want:  "quantum computing hardware roadmap",
		},
		{
			name:  "trailing punctuation trimmed",
			query: "Explain container networking!",
			want:  "container networking",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Topic(tt.query); got != tt.want {
				t.Errorf("Topic(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestFastPathPlan(t *testing.T) {
	plan := FastPathPlan("sess-1", "What is photosynthesis?")

	if len(plan.SubQuestions) != 1 {
		t.Fatalf("sub-question count = %d, want 1", len(plan.SubQuestions))
	}
	sq := plan.SubQuestions[0]
	if sq.Question != "What is photosynthesis?" {
		t.Errorf("question = %q, want the raw query", sq.Question)
	}
	if len(sq.DependsOn) != 0 {
		t.Errorf("fast path sub-question must have no dependencies")
	}
	if plan.Complexity != classifier.Simple {
		t.Errorf("Complexity = %q, want %q", plan.Complexity, classifier.Simple)
	}
}

func testPlan(subs ...SubQuestion) *Plan {
	return &Plan{SessionID: "sess-1", Query: "test query", SubQuestions: subs}
}

func TestSortByDependencyOrder(t *testing.T) {
	plan := testPlan(
		SubQuestion{ID: "sq-1", Status: StatusPending},
		SubQuestion{ID: "sq-2", DependsOn: []string{"sq-4"}, Status: StatusPending},
		SubQuestion{ID: "sq-3", Status: StatusPending},
		SubQuestion{ID: "sq-4", DependsOn: []string{"sq-1", "sq-3"}, Status: StatusPending},
	)

	sorted, err := plan.SortByDependency()
	if err != nil {
		t.Fatalf("SortByDependency() error = %v", err)
	}

	pos := map[string]int{}
	for i, sq := range sorted {
		pos[sq.ID] = i
	}
	for _, sq := range sorted {
		for _, dep := range sq.DependsOn {
			if pos[dep] >= pos[sq.ID] {
				t.Errorf("dependency %s sorted after %s", dep, sq.ID)
			}
		}
	}

	// Stable: ready nodes keep insertion order.
	wantOrder := []string{"sq-1", "sq-3", "sq-4", "sq-2"}
	for i, want := range wantOrder {
		if sorted[i].ID != want {
			t.Errorf("sorted[%d] = %s, want %s", i, sorted[i].ID, want)
		}
	}
}

func TestSortByDependencyRejectsCycles(t *testing.T) {
	tests := []struct {
		name string
		subs []SubQuestion
	}{
		{
			name: "two-node cycle",
			subs: []SubQuestion{
				{ID: "sq-1", DependsOn: []string{"sq-2"}},
				{ID: "sq-2", DependsOn: []string{"sq-1"}},
			},
		},
		{
			name: "self dependency",
			subs: []SubQuestion{
				{ID: "sq-1", DependsOn: []string{"sq-1"}},
			},
		},
		{
			name: "transitive cycle",
			subs: []SubQuestion{
				{ID: "sq-1", DependsOn: []string{"sq-3"}},
				{ID: "sq-2", DependsOn: []string{"sq-1"}},
				{ID: "sq-3", DependsOn: []string{"sq-2"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := testPlan(tt.subs...)
			_, err := plan.SortByDependency()
			if !errors.Is(err, errs.ErrCyclicDependency) {
				t.Errorf("SortByDependency() error = %v, want ErrCyclicDependency", err)
			}
		})
	}
}

func TestAddRejectsUnknownDependency(t *testing.T) {
	plan := testPlan(SubQuestion{ID: "sq-1", Status: StatusPending})

	err := plan.Add(SubQuestion{ID: "sq-2", DependsOn: []string{"sq-9"}})
	if !errors.Is(err, errs.ErrUnknownDependency) {
		t.Errorf("Add() error = %v, want ErrUnknownDependency", err)
	}
	if len(plan.SubQuestions) != 1 {
		t.Errorf("plan mutated on failed Add")
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	plan := testPlan(SubQuestion{ID: "sq-1", Status: StatusPending})

	err := plan.Add(SubQuestion{ID: "sq-1"})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Add() error = %v, want ErrInvalidInput", err)
	}
}

func TestAddDefaultsStatusToPending(t *testing.T) {
	plan := testPlan()
	if err := plan.Add(SubQuestion{ID: "sq-1", Question: "q"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if plan.SubQuestions[0].Status != StatusPending {
		t.Errorf("status = %q, want %q", plan.SubQuestions[0].Status, StatusPending)
	}
}

func TestParallelBatch(t *testing.T) {
	plan := testPlan(
		SubQuestion{ID: "a", Question: "A", Status: StatusPending},
		SubQuestion{ID: "b", Question: "B", DependsOn: []string{"a"}, Status: StatusPending},
		SubQuestion{ID: "c", Question: "C", Status: StatusPending},
	)

	batch := plan.ParallelBatch(map[string]bool{})
	if len(batch) != 2 || batch[0].ID != "a" || batch[1].ID != "c" {
		t.Fatalf("ParallelBatch(empty) = %v, want exactly [a c]", ids(batch))
	}

	// B is withheld until A completes.
	if err := plan.UpdateStatus("a", StatusInProgress); err != nil {
		t.Fatal(err)
	}
	if err := plan.UpdateStatus("a", StatusCompleted); err != nil {
		t.Fatal(err)
	}
	batch = plan.ParallelBatch(plan.CompletedSet())
	if !contains(batch, "b") {
		t.Errorf("ParallelBatch after completing a = %v, want b included", ids(batch))
	}
	if contains(batch, "a") {
		t.Errorf("completed sub-question a must not reappear in a batch")
	}

	if err := plan.UpdateStatus("c", StatusInProgress); err != nil {
		t.Fatal(err)
	}
	if err := plan.UpdateStatus("c", StatusCompleted); err != nil {
		t.Fatal(err)
	}
	batch = plan.ParallelBatch(plan.CompletedSet())
	if len(batch) != 1 || batch[0].ID != "b" {
		t.Errorf("ParallelBatch = %v, want exactly [b]", ids(batch))
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name      string
		from      Status
		to        Status
		wantError bool
	}{
		{name: "pending to in_progress", from: StatusPending, to: StatusInProgress, wantError: false},
		{name: "pending to failed", from: StatusPending, to: StatusFailed, wantError: false},
		{name: "in_progress to completed", from: StatusInProgress, to: StatusCompleted, wantError: false},
		{name: "in_progress to failed", from: StatusInProgress, to: StatusFailed, wantError: false},
		{name: "pending to completed skips in_progress", from: StatusPending, to: StatusCompleted, wantError: true},
		{name: "completed is terminal", from: StatusCompleted, to: StatusInProgress, wantError: true},
		{name: "failed is terminal", from: StatusFailed, to: StatusPending, wantError: true},
		{name: "in_progress cannot rewind", from: StatusInProgress, to: StatusPending, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := testPlan(SubQuestion{ID: "sq-1", Status: tt.from})
			err := plan.UpdateStatus("sq-1", tt.to)
			if tt.wantError {
				if !errors.Is(err, errs.ErrInvalidTransition) {
					t.Errorf("UpdateStatus() error = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			if got, _ := plan.Get("sq-1"); got.Status != tt.to {
				t.Errorf("status = %q, want %q", got.Status, tt.to)
			}
		})
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	plan := testPlan()
	err := plan.UpdateStatus("sq-404", StatusInProgress)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrNotFound", err)
	}
}

func TestAddFollowUps(t *testing.T) {
	plan := testPlan(
		SubQuestion{ID: "sq-1", Status: StatusCompleted},
		SubQuestion{ID: "sq-2", Status: StatusFailed},
	)

	added := plan.AddFollowUps([]SubQuestion{
		{Question: "follow up one", GapID: "gap-1", DependsOn: []string{"sq-1"}, Status: StatusFailed},
		{Question: "follow up two", GapID: "gap-2"},
	})

	if len(added) != 2 {
		t.Fatalf("AddFollowUps() returned %d, want 2", len(added))
	}
	if added[0].ID != "sq-3" || added[1].ID != "sq-4" {
		t.Errorf("follow-up IDs = %s, %s, want sq-3, sq-4", added[0].ID, added[1].ID)
	}
	for _, sq := range added {
		if sq.Status != StatusPending {
			t.Errorf("follow-up %s status = %q, want %q", sq.ID, sq.Status, StatusPending)
		}
		if len(sq.DependsOn) != 0 {
			t.Errorf("follow-up %s must not carry dependencies", sq.ID)
		}
	}
	if added[0].GapID != "gap-1" || added[1].GapID != "gap-2" {
		t.Errorf("gap IDs not preserved: %q, %q", added[0].GapID, added[1].GapID)
	}
	if len(plan.SubQuestions) != 4 {
		t.Errorf("plan size = %d, want 4", len(plan.SubQuestions))
	}
}

func TestStarved(t *testing.T) {
	plan := testPlan(
		SubQuestion{ID: "sq-1", Status: StatusFailed},
		SubQuestion{ID: "sq-2", Status: StatusCompleted},
		SubQuestion{ID: "sq-3", DependsOn: []string{"sq-1"}, Status: StatusPending},
		SubQuestion{ID: "sq-4", DependsOn: []string{"sq-2"}, Status: StatusPending},
	)

	starved, _ := plan.Get("sq-3")
	if !plan.Starved(starved) {
		t.Errorf("sq-3 depends on failed sq-1, want starved")
	}
	healthy, _ := plan.Get("sq-4")
	if plan.Starved(healthy) {
		t.Errorf("sq-4 depends on completed sq-2, want not starved")
	}
}

func ids(subs []SubQuestion) []string {
	out := make([]string, len(subs))
	for i, sq := range subs {
		out[i] = sq.ID
	}
	return out
}

func contains(subs []SubQuestion, id string) bool {
	for _, sq := range subs {
		if sq.ID == id {
			return true
		}
	}
	return false
}
