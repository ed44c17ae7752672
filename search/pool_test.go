package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/provider"
)

// slowSearch simulates a streaming provider with per-question latency and
// failures, tracking the peak number of concurrent calls.
type slowSearch struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    int
	delay    time.Duration
	failFor  map[string]error
}

func (s *slowSearch) Name() string { return "slow" }

func (s *slowSearch) SearchStream(ctx context.Context, req provider.SearchRequest) iter.Seq2[*provider.SearchChunk, error] {
	return func(yield func(*provider.SearchChunk, error) bool) {
		s.mu.Lock()
		s.calls++
		s.inFlight++
		if s.inFlight > s.maxSeen {
			s.maxSeen = s.inFlight
		}
		fail := s.failFor[req.Query]
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
		}()

		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			yield(nil, ctx.Err())
			return
		}

		if fail != nil {
			yield(nil, fail)
			return
		}

		content := "findings for " + req.Query
		if !yield(&provider.SearchChunk{Delta: content}, nil) {
			return
		}
		yield(&provider.SearchChunk{
			Done:      true,
			Content:   content,
			Citations: []string{"https://example.com/a", "https://example.com/b"},
		}, nil)
	}
}

func (s *slowSearch) stats() (calls, maxSeen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.maxSeen
}

func batchSubs(n int) []planner.SubQuestion {
	subs := make([]planner.SubQuestion, n)
	for i := range subs {
		subs[i] = planner.SubQuestion{
			ID:       fmt.Sprintf("sq-%d", i+1),
			Question: fmt.Sprintf("question %d", i+1),
			Status:   planner.StatusPending,
		}
	}
	return subs
}

func poolConfig(concurrency int) *Config {
	cfg := DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

// recorder captures callback invocations. The pool promises single-threaded
// delivery, so no mutex is needed; the race detector enforces the promise.
type recorder struct {
	events []string
}

func (r *recorder) OnStart(sq planner.SubQuestion)              { r.events = append(r.events, "start:"+sq.ID) }
func (r *recorder) OnProgress(sq planner.SubQuestion, _ string) { r.events = append(r.events, "progress:"+sq.ID) }
func (r *recorder) OnComplete(sq planner.SubQuestion, _ *Note)  { r.events = append(r.events, "complete:"+sq.ID) }
func (r *recorder) OnError(sq planner.SubQuestion, _ *Failure)  { r.events = append(r.events, "error:"+sq.ID) }

func (r *recorder) indexOf(event string) int {
	for i, e := range r.events {
		if e == event {
			return i
		}
	}
	return -1
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := &slowSearch{delay: 20 * time.Millisecond}
	pool := NewPool(p, poolConfig(2))
	subs := batchSubs(5)

	res := pool.Run(context.Background(), subs, BatchInput{SessionID: "s-1"})

	calls, maxSeen := p.stats()
	if maxSeen > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", maxSeen)
	}
	if maxSeen != 2 {
		t.Errorf("peak concurrency = %d, want the pool to fill to 2", maxSeen)
	}
	if calls != 5 {
		t.Errorf("provider calls = %d, want 5", calls)
	}
	if len(res.Notes) != 5 || len(res.Failures) != 0 {
		t.Fatalf("notes = %d, failures = %d, want 5 and 0", len(res.Notes), len(res.Failures))
	}
	if res.Queries != 5 {
		t.Errorf("Queries = %d, want 5", res.Queries)
	}
	if res.Wall <= 0 || res.Serial <= 0 {
		t.Errorf("Wall = %v, Serial = %v, want both > 0", res.Wall, res.Serial)
	}
	if res.Efficiency <= 0 || res.Efficiency > 1 {
		t.Errorf("Efficiency = %v, want in (0, 1]", res.Efficiency)
	}
}

func TestPoolNotesCarrySearchResults(t *testing.T) {
	p := &slowSearch{delay: time.Millisecond}
	pool := NewPool(p, poolConfig(3))
	subs := batchSubs(2)

	res := pool.Run(context.Background(), subs, BatchInput{SessionID: "s-7"})
	if len(res.Notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(res.Notes))
	}
	for _, note := range res.Notes {
		if note.ID == "" {
			t.Error("note has no ID")
		}
		if note.SessionID != "s-7" {
			t.Errorf("SessionID = %q, want %q", note.SessionID, "s-7")
		}
		if !strings.HasPrefix(note.Content, "findings for question") {
			t.Errorf("Content = %q, want provider findings", note.Content)
		}
		if len(note.Citations) != 2 {
			t.Errorf("citations = %d, want 2", len(note.Citations))
		}
		if note.Confidence < 0.5 || note.Confidence > 0.95 {
			t.Errorf("Confidence = %v, want within [0.5, 0.95]", note.Confidence)
		}
		if note.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", note.Attempts)
		}
		if note.CreatedAt.IsZero() {
			t.Error("CreatedAt not set")
		}
	}
}

func TestPoolPartitionsNotesAndFailures(t *testing.T) {
	tests := []struct {
		name         string
		failErr      error
		wantAttempts int
		wantCalls    int
	}{
		{
			name:         "transient failure exhausts retries",
			failErr:      errors.New("connection reset by peer"),
			wantAttempts: 3,
			wantCalls:    3 + 3,
		},
		{
			name:         "non-retryable failure aborts immediately",
			failErr:      errors.New("status 401: unauthorized"),
			wantAttempts: 1,
			wantCalls:    3 + 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &slowSearch{
				delay:   time.Millisecond,
				failFor: map[string]error{"question 2": tt.failErr},
			}
			pool := NewPool(p, poolConfig(2))
			subs := batchSubs(4)

			res := pool.Run(context.Background(), subs, BatchInput{SessionID: "s-2"})

			if got := len(res.Notes) + len(res.Failures); got != len(subs) {
				t.Fatalf("notes + failures = %d, want %d", got, len(subs))
			}
			if len(res.Failures) != 1 {
				t.Fatalf("failures = %d, want 1", len(res.Failures))
			}
			f := res.Failures[0]
			if f.SubQuestionID != "sq-2" {
				t.Errorf("failed sub-question = %s, want sq-2", f.SubQuestionID)
			}
			if f.Question != "question 2" {
				t.Errorf("failure Question = %q, want %q", f.Question, "question 2")
			}
			if f.Attempts != tt.wantAttempts {
				t.Errorf("failure Attempts = %d, want %d", f.Attempts, tt.wantAttempts)
			}
			if !strings.Contains(f.Reason, tt.failErr.Error()) {
				t.Errorf("failure Reason = %q, want it to contain %q", f.Reason, tt.failErr)
			}
			if calls, _ := p.stats(); calls != tt.wantCalls {
				t.Errorf("provider calls = %d, want %d", calls, tt.wantCalls)
			}
			if res.Queries != tt.wantCalls {
				t.Errorf("Queries = %d, want %d", res.Queries, tt.wantCalls)
			}
		})
	}
}

func TestPoolCallbackOrder(t *testing.T) {
	p := &slowSearch{delay: time.Millisecond}
	pool := NewPool(p, poolConfig(2))
	subs := batchSubs(4)
	rec := &recorder{}

	res := pool.Run(context.Background(), subs, BatchInput{SessionID: "s-3", Callbacks: rec})
	if len(res.Notes) != 4 {
		t.Fatalf("notes = %d, want 4", len(res.Notes))
	}

	// The initial fill starts the first two sub-questions in plan order.
	if rec.events[0] != "start:sq-1" || rec.events[1] != "start:sq-2" {
		t.Errorf("first events = %v, want start:sq-1, start:sq-2", rec.events[:2])
	}

	for _, sub := range subs {
		start := rec.indexOf("start:" + sub.ID)
		progress := rec.indexOf("progress:" + sub.ID)
		complete := rec.indexOf("complete:" + sub.ID)
		if start == -1 || progress == -1 || complete == -1 {
			t.Fatalf("missing events for %s: %v", sub.ID, rec.events)
		}
		if !(start < progress && progress < complete) {
			t.Errorf("events for %s out of order: start=%d progress=%d complete=%d",
				sub.ID, start, progress, complete)
		}
	}

	starts := 0
	for _, e := range rec.events {
		if strings.HasPrefix(e, "start:") {
			starts++
		}
	}
	if starts != 4 {
		t.Errorf("starts = %d, want 4", starts)
	}
}

func TestPoolCancellationFailsQueuedWork(t *testing.T) {
	p := &slowSearch{delay: 5 * time.Millisecond}
	pool := NewPool(p, poolConfig(1))
	subs := batchSubs(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &cancelOnFirstComplete{cancel: cancel}

	res := pool.Run(ctx, subs, BatchInput{SessionID: "s-4", Callbacks: rec})

	if got := len(res.Notes) + len(res.Failures); got != len(subs) {
		t.Fatalf("notes + failures = %d, want %d", got, len(subs))
	}
	if len(res.Notes) != 1 {
		t.Fatalf("notes = %d, want exactly the one finished before cancel", len(res.Notes))
	}
	if len(res.Failures) != 3 {
		t.Fatalf("failures = %d, want 3", len(res.Failures))
	}
	for _, f := range res.Failures {
		if f.Attempts != 0 {
			t.Errorf("queued failure %s Attempts = %d, want 0", f.SubQuestionID, f.Attempts)
		}
		if !strings.Contains(f.Reason, "cancel") {
			t.Errorf("queued failure %s Reason = %q, want a cancellation reason", f.SubQuestionID, f.Reason)
		}
	}
}

// cancelOnFirstComplete cancels the batch context as soon as any search
// completes.
type cancelOnFirstComplete struct {
	NopCallbacks
	cancel context.CancelFunc
	fired  bool
}

func (c *cancelOnFirstComplete) OnComplete(sq planner.SubQuestion, note *Note) {
	if !c.fired {
		c.fired = true
		c.cancel()
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	pool := NewPool(&slowSearch{}, poolConfig(3))

	res := pool.Run(context.Background(), nil, BatchInput{SessionID: "s-5"})
	if len(res.Notes) != 0 || len(res.Failures) != 0 {
		t.Errorf("empty batch produced notes = %d, failures = %d", len(res.Notes), len(res.Failures))
	}
	if res.Queries != 0 || res.Efficiency != 0 {
		t.Errorf("empty batch Queries = %d, Efficiency = %v, want zeros", res.Queries, res.Efficiency)
	}
}

func TestEfficiency(t *testing.T) {
	tests := []struct {
		name        string
		serial      time.Duration
		wall        time.Duration
		concurrency int
		want        float64
	}{
		{"perfect utilization", 2 * time.Second, time.Second, 2, 1.0},
		{"half utilization", time.Second, time.Second, 2, 0.5},
		{"clamped above one", 3 * time.Second, time.Second, 2, 1.0},
		{"serial equals wall single worker", time.Second, time.Second, 1, 1.0},
		{"zero serial", 0, time.Second, 3, 0},
		{"zero wall", time.Second, 0, 2, 0},
		{"zero concurrency", time.Second, time.Second, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Efficiency(tt.serial, tt.wall, tt.concurrency); !almostEqual(got, tt.want) {
				t.Errorf("Efficiency(%v, %v, %d) = %v, want %v", tt.serial, tt.wall, tt.concurrency, got, tt.want)
			}
		})
	}
}
