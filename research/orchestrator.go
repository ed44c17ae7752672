// Package research orchestrates the deep-research pipeline: classify the
// query, plan sub-questions, search them in parallel, synthesize a cited
// answer, and loop on coverage gaps within a bounded round budget.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/deepresearch/classifier"
	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/graph"
	"github.com/sweetpotato0/deepresearch/pkg/logging"
	"github.com/sweetpotato0/deepresearch/pkg/telemetry"
	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/provider"
	"github.com/sweetpotato0/deepresearch/search"
	"github.com/sweetpotato0/deepresearch/synthesis"
)

// runStateKey carries the working state through the flow graph.
const runStateKey = "__research_run_state"

const (
	routeRound2 = "round2"
	routeDone   = "done"
)

// Providers are the external model services a run may call.
type Providers struct {
	Search     provider.SearchProvider     // required, executes sub-question searches
	Completion provider.CompletionProvider // optional, classifier LLM assist
}

// Orchestrator drives research sessions through the pipeline. It is the
// single writer of each session it runs; concurrent Run calls operate on
// independent sessions and may share one Orchestrator.
type Orchestrator struct {
	cfg        *Config
	classifier *classifier.Classifier
	pool       *search.Pool
	store      SessionStore
	sink       EventSink
	logger     *slog.Logger
	counter    TokenCounter
	flow       *graph.Graph
}

// New builds an orchestrator around the given providers. The search provider
// is required; the completion provider enables the classifier LLM assist.
func New(providers Providers, opts ...Option) (*Orchestrator, error) {
	if providers.Search == nil {
		return nil, errs.ErrNoSearchProvider
	}
	cfg := applyOptions(nil, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.WithComponent("research")
	}
	sink := cfg.sink
	if sink == nil {
		sink = NopSink{}
	}
	counter := cfg.tokens
	if counter == nil {
		counter = NewTokenCounter(cfg.TokenModel)
	}

	classifierOpts := []classifier.Option{
		classifier.WithFastPathConfidence(cfg.FastPathConfidence),
		classifier.WithLLMThreshold(cfg.LLMAssistThreshold),
		classifier.WithModel(cfg.ClassifierModel),
		classifier.WithPrompt(cfg.ClassifyPrompt),
	}

	searchCfg := &search.Config{
		Concurrency:    cfg.Concurrency,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Model:          cfg.SearchModel,
		MaxTokens:      cfg.SearchMaxTokens,
		Temperature:    cfg.SearchTemperature,
		SystemPrompt:   cfg.SearchSystemPrompt,
	}
	if searchCfg.SystemPrompt == "" {
		searchCfg.SystemPrompt = search.DefaultSystemPrompt
	}

	o := &Orchestrator{
		cfg:        cfg,
		classifier: classifier.New(providers.Completion, classifierOpts...),
		pool:       search.NewPool(providers.Search, searchCfg),
		store:      cfg.store,
		sink:       sink,
		logger:     logger,
		counter:    counter,
	}
	o.flow = o.buildFlow()
	return o, nil
}

// runState is the orchestrator's working state for one run.
type runState struct {
	session *Session

	roundCtx     string // prior findings injected into follow-up searches
	lastNotes    int    // session note count before the current round
	lastFailures int    // session failure count before the current round
}

func getState(s graph.State) (*runState, error) {
	v, ok := s[runStateKey]
	if !ok {
		return nil, fmt.Errorf("run state missing from graph state")
	}
	st, ok := v.(*runState)
	if !ok {
		return nil, fmt.Errorf("unexpected run state type %T", v)
	}
	return st, nil
}

func (o *Orchestrator) buildFlow() *graph.Graph {
	return graph.NewBuilder().
		AddNode("start", graph.NodeTypeStart, o.startNode).
		AddNode("classify", graph.NodeTypeStage, o.classifyNode).
		AddNode("plan", graph.NodeTypeStage, o.planNode).
		AddNode("search", graph.NodeTypeStage, o.searchNode).
		AddNode("synthesize", graph.NodeTypeStage, o.synthesizeNode).
		AddConditionNode("gap_gate", o.gapGate, map[string]string{
			routeRound2: "search",
			routeDone:   "end",
		}).
		AddNode("end", graph.NodeTypeEnd, nil).
		AddEdge("start", "classify").
		AddEdge("classify", "plan").
		AddEdge("plan", "search").
		AddEdge("search", "synthesize").
		AddEdge("synthesize", "gap_gate").
		SetMaxVisits(o.cfg.MaxRounds + 2).
		Build()
}

// Run researches query end to end and returns the finished session. On
// failure the partially filled session is returned alongside the error, with
// status failed and Error set.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Session, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.ErrEmptyQuery
	}

	session := newSession(query)
	ctx, span := telemetry.StartSpan(ctx, "research.run",
		attribute.String("session_id", session.ID))

	o.logger.Info("research run starting",
		"session_id", session.ID,
		"query", truncate(query, 120))
	o.emit(session, Event{Type: EventSessionStarted, Query: query})

	state := graph.State{runStateKey: &runState{session: session}}
	if _, err := o.flow.Execute(ctx, state); err != nil {
		err = o.fail(ctx, session, err)
		telemetry.End(span, err)
		return session, err
	}

	o.finalize(ctx, session)
	telemetry.End(span, nil)
	return session, nil
}

func (o *Orchestrator) startNode(_ context.Context, s graph.State) (graph.State, error) {
	st, err := getState(s)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("pipeline starting", "session_id", st.session.ID)
	return s, nil
}

func (o *Orchestrator) classifyNode(ctx context.Context, s graph.State) (graph.State, error) {
	st, err := getState(s)
	if err != nil {
		return nil, err
	}
	session := st.session

	var opts []classifier.ClassifyOption
	if o.cfg.LLMAssist {
		opts = append(opts, classifier.WithLLMAssist())
	}
	res := o.classifier.Classify(ctx, session.Query, opts...)
	session.Classification = res
	session.FastPath = o.cfg.FastPath && o.classifier.ShouldUseFastPath(res)
	session.touch()

	o.logger.Info("query classified",
		"session_id", session.ID,
		"complexity", res.Complexity,
		"confidence", res.Confidence,
		"source", res.Source,
		"fast_path", session.FastPath)
	return s, nil
}

func (o *Orchestrator) planNode(_ context.Context, s graph.State) (graph.State, error) {
	st, err := getState(s)
	if err != nil {
		return nil, err
	}
	session := st.session

	if session.FastPath {
		session.Plan = planner.FastPathPlan(session.ID, session.Query)
	} else {
		session.Plan = planner.CreatePlan(session.ID, session.Query, session.Classification, &planner.Config{
			SimpleCount:   o.cfg.SimpleSubQuestions,
			ModerateCount: o.cfg.ModerateSubQuestions,
			ComplexCount:  o.cfg.ComplexSubQuestions,
		})
	}
	session.touch()

	o.logger.Info("plan created",
		"session_id", session.ID,
		"sub_questions", len(session.Plan.SubQuestions),
		"fast_path", session.FastPath)
	return s, nil
}

// searchNode runs dependency-ordered batches through the pool until nothing
// is pending. Sub-questions whose dependencies failed can never run; they
// are failed in place so the round always terminates.
func (o *Orchestrator) searchNode(ctx context.Context, s graph.State) (graph.State, error) {
	st, err := getState(s)
	if err != nil {
		return nil, err
	}
	session := st.session
	o.setPhase(session, StatusSearching)

	ctx, span := telemetry.StartSpan(ctx, "research.search_batch",
		attribute.String("session_id", session.ID),
		attribute.Int("round", session.Round))

	st.lastNotes = len(session.Notes)
	st.lastFailures = len(session.Failures)

	for {
		if err := ctx.Err(); err != nil {
			telemetry.End(span, err)
			return nil, err
		}

		batch := session.Plan.ParallelBatch(session.Plan.CompletedSet())
		if len(batch) == 0 {
			if len(session.Plan.Pending()) == 0 {
				break
			}
			if o.failStarved(session) == 0 {
				break
			}
			continue
		}

		for i := range batch {
			if err := session.Plan.UpdateStatus(batch[i].ID, planner.StatusInProgress); err != nil {
				o.logger.Warn("could not mark sub-question in progress",
					"sub_question_id", batch[i].ID, "error", err)
			}
		}

		res := o.pool.Run(ctx, batch, search.BatchInput{
			SessionID: session.ID,
			Context:   st.roundCtx,
			Callbacks: poolEvents{o: o, session: session},
		})
		o.applyBatch(session, res)
	}

	telemetry.End(span, nil)
	return s, nil
}

func (o *Orchestrator) synthesizeNode(_ context.Context, s graph.State) (graph.State, error) {
	st, err := getState(s)
	if err != nil {
		return nil, err
	}
	session := st.session
	o.setPhase(session, StatusSynthesizing)
	o.emit(session, Event{Type: EventSynthesisStarted})

	// Partial failure is tolerated, total failure is not.
	if len(session.Notes) == 0 {
		return nil, fmt.Errorf("%w: %d sub-question(s) failed", errs.ErrNoResults, len(session.Failures))
	}

	ans := synthesis.Compose(session.Plan, session.Notes, session.Citations)
	session.Answer = ans.Text
	session.Citations = ans.Citations
	session.Confidence = ans.Confidence
	session.touch()

	o.logger.Info("answer synthesized",
		"session_id", session.ID,
		"round", session.Round,
		"notes", len(session.Notes),
		"citations", len(session.Citations),
		"confidence", session.Confidence)
	o.emit(session, Event{Type: EventSynthesisCompleted, Answer: ans.Text})
	return s, nil
}

// gapGate decides whether the latest round's gaps justify another one.
func (o *Orchestrator) gapGate(_ context.Context, s graph.State) (string, error) {
	st, err := getState(s)
	if err != nil {
		return "", err
	}
	session := st.session

	if session.Round >= o.cfg.MaxRounds {
		o.logger.Debug("round budget exhausted",
			"session_id", session.ID, "round", session.Round)
		return routeDone, nil
	}

	o.setPhase(session, StatusGapAnalysis)

	gaps := synthesis.DetectGaps(session.Plan,
		session.Notes[st.lastNotes:],
		session.Failures[st.lastFailures:],
		&synthesis.Config{
			LowConfidence: o.cfg.LowConfidence,
			MinCitations:  o.cfg.MinCitations,
			MaxFollowUps:  o.cfg.MaxFollowUps,
		})
	session.Gaps = append(session.Gaps, gaps...)
	session.touch()

	o.logger.Info("gap analysis finished",
		"session_id", session.ID,
		"round", session.Round,
		"gaps", len(gaps))
	o.emit(session, Event{Type: EventGapsDetected, Gaps: gaps})

	if !synthesis.ShouldProceedToRound2(gaps, session.Notes) {
		return routeDone, nil
	}
	followUps := synthesis.FollowUpQueries(gaps, o.cfg.MaxFollowUps)
	if len(followUps) == 0 {
		return routeDone, nil
	}

	added := session.Plan.AddFollowUps(followUps)
	session.Round++
	st.roundCtx = roundContext(session.Answer)
	session.touch()

	o.logger.Info("starting follow-up round",
		"session_id", session.ID,
		"round", session.Round,
		"follow_ups", len(added))
	return routeRound2, nil
}

// applyBatch folds one pool result into the session and its metrics.
func (o *Orchestrator) applyBatch(session *Session, res *search.BatchResult) {
	for i := range res.Notes {
		note := res.Notes[i]
		if err := session.Plan.UpdateStatus(note.SubQuestionID, planner.StatusCompleted); err != nil {
			o.logger.Warn("could not complete sub-question",
				"sub_question_id", note.SubQuestionID, "error", err)
		}
		o.resolveGap(session, note.SubQuestionID)
		session.Notes = append(session.Notes, note)
	}
	for i := range res.Failures {
		f := res.Failures[i]
		if err := session.Plan.UpdateStatus(f.SubQuestionID, planner.StatusFailed); err != nil {
			o.logger.Warn("could not fail sub-question",
				"sub_question_id", f.SubQuestionID, "error", err)
		}
		session.Failures = append(session.Failures, f)
	}

	session.Metrics.TotalQueries += res.Queries
	session.Metrics.TotalSearches += len(res.Notes) + len(res.Failures)
	session.Metrics.SearchWallTime += res.Wall
	session.Metrics.SearchSerialTime += res.Serial
	session.touch()
}

// failStarved fails every pending sub-question with a failed direct
// dependency, returning how many it marked.
func (o *Orchestrator) failStarved(session *Session) int {
	marked := 0
	for _, sq := range session.Plan.Pending() {
		if !session.Plan.Starved(sq) {
			continue
		}
		if err := session.Plan.UpdateStatus(sq.ID, planner.StatusFailed); err != nil {
			o.logger.Warn("could not fail starved sub-question",
				"sub_question_id", sq.ID, "error", err)
			continue
		}
		f := search.Failure{
			SubQuestionID: sq.ID,
			Question:      sq.Question,
			Reason:        "dependency failed",
		}
		session.Failures = append(session.Failures, f)
		o.emit(session, Event{Type: EventSearchFailed, SubQuestion: &sq, Failure: &f})
		o.logger.Debug("sub-question starved by failed dependency",
			"session_id", session.ID, "sub_question_id", sq.ID)
		marked++
	}
	return marked
}

// resolveGap marks the gap that spawned a follow-up sub-question resolved
// once that sub-question produces a note.
func (o *Orchestrator) resolveGap(session *Session, subQuestionID string) {
	sq, ok := session.Plan.Get(subQuestionID)
	if !ok || sq.GapID == "" {
		return
	}
	for i := range session.Gaps {
		if session.Gaps[i].ID == sq.GapID {
			session.Gaps[i].Resolved = true
			return
		}
	}
}

// finalize closes out a successful run.
func (o *Orchestrator) finalize(ctx context.Context, session *Session) {
	o.setPhase(session, StatusComplete)
	now := time.Now().UTC()
	session.CompletedAt = &now
	o.finalizeMetrics(session)
	o.persist(ctx, session)
	o.emit(session, Event{Type: EventSessionCompleted, Metrics: &session.Metrics})

	o.logger.Info("research run complete",
		"session_id", session.ID,
		"rounds", session.Round,
		"notes", len(session.Notes),
		"failures", len(session.Failures),
		"citations", len(session.Citations),
		"duration", session.Metrics.TotalDuration)
}

// fail closes out a run that cannot continue, keeping the partial session.
func (o *Orchestrator) fail(ctx context.Context, session *Session, err error) error {
	session.Status = StatusFailed
	session.Error = err.Error()
	now := time.Now().UTC()
	session.CompletedAt = &now
	session.touch()
	o.finalizeMetrics(session)
	o.persist(ctx, session)
	o.emit(session, Event{Type: EventSessionFailed, Error: session.Error})

	o.logger.Error("research run failed",
		"session_id", session.ID, "error", err)
	return err
}

func (o *Orchestrator) finalizeMetrics(session *Session) {
	m := &session.Metrics
	m.TotalDuration = time.Since(session.CreatedAt)
	m.ParallelizationEfficiency = search.Efficiency(m.SearchSerialTime, m.SearchWallTime, o.cfg.Concurrency)
	m.Rounds = session.Round
	m.NotesCount = len(session.Notes)
	m.FailedCount = len(session.Failures)
	m.GapCount = len(session.Gaps)
	m.CitationCount = len(session.Citations)

	tokens := o.counter(session.Answer)
	for i := range session.Notes {
		tokens += o.counter(session.Notes[i].Content)
	}
	m.EstimatedTokens = tokens
	m.EstimatedCost = queryCost(o.cfg.CostPerQuery, o.cfg.SearchModel) * float64(m.TotalQueries)
}

// persist snapshots the session, best effort. A detached context lets the
// final snapshot land even when the run context is already cancelled.
func (o *Orchestrator) persist(ctx context.Context, session *Session) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.Save(ctx, session.Clone()); err != nil {
		o.logger.Error("session snapshot failed",
			"session_id", session.ID, "error", err)
	}
}

func (o *Orchestrator) setPhase(session *Session, status Status) {
	if session.Status == status {
		return
	}
	session.Status = status
	session.touch()
	o.logger.Info("phase changed",
		"session_id", session.ID, "phase", status, "round", session.Round)
	o.emit(session, Event{Type: EventPhaseChanged})
}

// emit stamps and delivers one event. All emission happens on the goroutine
// driving Run, so sinks observe a sequential stream.
func (o *Orchestrator) emit(session *Session, e Event) {
	e.SessionID = session.ID
	e.Phase = session.Status
	e.Round = session.Round
	e.Time = time.Now().UTC()
	o.sink.OnEvent(e)
}

// poolEvents bridges pool callbacks onto the event sink. The pool fires
// callbacks one at a time from its control loop while Run blocks on it, so
// the stream stays sequential.
type poolEvents struct {
	o       *Orchestrator
	session *Session
}

func (p poolEvents) OnStart(sq planner.SubQuestion) {
	p.o.emit(p.session, Event{Type: EventSearchStarted, SubQuestion: &sq})
}

func (p poolEvents) OnProgress(sq planner.SubQuestion, delta string) {
	p.o.emit(p.session, Event{Type: EventSearchProgress, SubQuestion: &sq, Delta: delta})
}

func (p poolEvents) OnComplete(sq planner.SubQuestion, note *search.Note) {
	p.o.emit(p.session, Event{Type: EventSearchCompleted, SubQuestion: &sq, Note: note})
}

func (p poolEvents) OnError(sq planner.SubQuestion, failure *search.Failure) {
	p.o.emit(p.session, Event{Type: EventSearchFailed, SubQuestion: &sq, Failure: failure})
}

// roundContextLimit bounds how much of the prior answer is replayed into
// follow-up searches.
const roundContextLimit = 1200

func roundContext(answer string) string {
	if answer == "" {
		return ""
	}
	return "Findings so far:\n" + truncate(answer, roundContextLimit)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
