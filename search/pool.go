package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sweetpotato0/deepresearch/pkg/logging"
	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/provider"
)

// progressBuffer bounds how many streamed deltas may queue before workers
// block waiting on the control loop.
const progressBuffer = 64

// BatchInput carries the per-batch inputs for a Pool run.
type BatchInput struct {
	SessionID string
	Context   string    // findings accumulated in earlier rounds
	Callbacks Callbacks // nil means NopCallbacks
}

// BatchResult is the outcome of one Pool.Run over a batch of sub-questions.
// Notes and Failures partition the batch: every sub-question lands in
// exactly one of them.
type BatchResult struct {
	Notes      []Note
	Failures   []Failure
	Wall       time.Duration // batch wall time
	Serial     time.Duration // summed per-search durations
	Queries    int           // provider calls, including retries
	Efficiency float64
}

// settlement is a worker's final report to the control loop.
type settlement struct {
	sub     planner.SubQuestion
	note    *Note    // nil on failure
	failure *Failure // nil on success
	queries int
}

// progressDelta is one streamed chunk relayed to the control loop.
type progressDelta struct {
	sub   planner.SubQuestion
	delta string
}

// Pool runs batches of sub-question searches with bounded concurrency.
//
// Scheduling is fill-then-race: up to Concurrency searches launch
// immediately, then every settlement admits the next queued sub-question,
// so a slow search never blocks launching independent work. A single
// control loop owns all state and fires all callbacks, in channel receive
// order; workers only communicate over channels.
type Pool struct {
	exec   *Executor
	cfg    *Config
	logger *slog.Logger
}

// NewPool returns a pool searching through the given provider. A nil cfg
// selects DefaultConfig.
func NewPool(p provider.SearchProvider, cfg *Config) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Pool{
		exec:   NewExecutor(p, cfg),
		cfg:    cfg,
		logger: logging.WithComponent("search.pool"),
	}
}

// Run searches every sub-question in subs and returns when all have
// settled. Failed searches become Failures rather than aborting the batch.
// Cancelling ctx stops new launches, lets in-flight searches settle through
// their context, and records still-queued sub-questions as cancelled
// failures.
func (p *Pool) Run(ctx context.Context, subs []planner.SubQuestion, in BatchInput) *BatchResult {
	res := &BatchResult{}
	if len(subs) == 0 {
		return res
	}

	cb := in.Callbacks
	if cb == nil {
		cb = NopCallbacks{}
	}
	concurrency := p.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	p.logger.Info("starting search batch",
		"session_id", in.SessionID,
		"sub_questions", len(subs),
		"concurrency", concurrency)

	settlements := make(chan settlement, len(subs))
	progress := make(chan progressDelta, progressBuffer)

	start := time.Now()
	next := 0

	launch := func(sub planner.SubQuestion) {
		cb.OnStart(sub)
		go p.work(ctx, sub, in, progress, settlements)
	}

	for next < len(subs) && next < concurrency {
		launch(subs[next])
		next++
	}

	done := ctx.Done()
	for settled := 0; settled < len(subs); {
		select {
		case d := <-progress:
			cb.OnProgress(d.sub, d.delta)

		case s := <-settlements:
			// Deltas queued ahead of this settlement belong before it.
			drainProgress(progress, cb)
			settled++
			res.Queries += s.queries
			if s.note != nil {
				res.Serial += s.note.Duration
				res.Notes = append(res.Notes, *s.note)
				cb.OnComplete(s.sub, s.note)
			} else {
				res.Serial += s.failure.Duration
				res.Failures = append(res.Failures, *s.failure)
				cb.OnError(s.sub, s.failure)
			}
			if next < len(subs) && ctx.Err() == nil {
				launch(subs[next])
				next++
			}

		case <-done:
			done = nil
			p.logger.Warn("batch cancelled, failing queued sub-questions",
				"session_id", in.SessionID,
				"queued", len(subs)-next)
			for ; next < len(subs); next++ {
				sub := subs[next]
				f := &Failure{
					SubQuestionID: sub.ID,
					Question:      sub.Question,
					Reason:        fmt.Sprintf("cancelled before start: %v", ctx.Err()),
				}
				settled++
				res.Failures = append(res.Failures, *f)
				cb.OnError(sub, f)
			}
		}
	}

	res.Wall = time.Since(start)
	res.Efficiency = Efficiency(res.Serial, res.Wall, concurrency)

	p.logger.Info("search batch finished",
		"session_id", in.SessionID,
		"notes", len(res.Notes),
		"failures", len(res.Failures),
		"queries", res.Queries,
		"wall", res.Wall,
		"efficiency", res.Efficiency)
	return res
}

// work runs one sub-question search to settlement. The settlements channel
// is buffered for the whole batch, so sends never block.
func (p *Pool) work(ctx context.Context, sub planner.SubQuestion, in BatchInput, progress chan<- progressDelta, settlements chan<- settlement) {
	begin := time.Now()
	input := Input{
		SubQuestionID: sub.ID,
		Question:      sub.Question,
		Context:       in.Context,
		OnDelta: func(delta string) {
			select {
			case progress <- progressDelta{sub: sub, delta: delta}:
			case <-ctx.Done():
			}
		},
	}

	att, err := p.exec.ExecuteWithRetry(ctx, input, p.cfg.MaxRetries)
	if err != nil {
		settlements <- settlement{
			sub: sub,
			failure: &Failure{
				SubQuestionID: sub.ID,
				Question:      sub.Question,
				Reason:        err.Error(),
				Attempts:      att.Attempts,
				Duration:      time.Since(begin),
			},
			queries: att.Attempts,
		}
		return
	}

	out := att.Output
	settlements <- settlement{
		sub: sub,
		note: &Note{
			ID:            uuid.NewString(),
			SessionID:     in.SessionID,
			SubQuestionID: sub.ID,
			Content:       out.Content,
			Citations:     out.Citations,
			Confidence:    Confidence(out.Content, len(out.Citations)),
			Attempts:      att.Attempts,
			Duration:      time.Since(begin),
			CreatedAt:     time.Now().UTC(),
		},
		queries: att.Attempts,
	}
}

// drainProgress flushes every delta already queued, without blocking.
func drainProgress(progress <-chan progressDelta, cb Callbacks) {
	for {
		select {
		case d := <-progress:
			cb.OnProgress(d.sub, d.delta)
		default:
			return
		}
	}
}

// Efficiency reports how much of a pool's theoretical capacity a batch
// used: summed search durations over wall time times concurrency, clamped
// to 1.
func Efficiency(serial, wall time.Duration, concurrency int) float64 {
	if serial <= 0 || wall <= 0 || concurrency <= 0 {
		return 0
	}
	eff := float64(serial) / (float64(wall) * float64(concurrency))
	if eff > 1 {
		eff = 1
	}
	return eff
}
