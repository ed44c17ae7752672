package research

import (
	"time"

	"github.com/sweetpotato0/deepresearch/planner"
	"github.com/sweetpotato0/deepresearch/search"
	"github.com/sweetpotato0/deepresearch/synthesis"
)

// EventType identifies a pipeline event.
type EventType string

const (
	EventSessionStarted     EventType = "session_started"
	EventPhaseChanged       EventType = "phase_changed"
	EventSearchStarted      EventType = "search_started"
	EventSearchProgress     EventType = "search_progress"
	EventSearchCompleted    EventType = "search_completed"
	EventSearchFailed       EventType = "search_failed"
	EventSynthesisStarted   EventType = "synthesis_started"
	EventSynthesisCompleted EventType = "synthesis_completed"
	EventGapsDetected       EventType = "gaps_detected"
	EventSessionCompleted   EventType = "session_completed"
	EventSessionFailed      EventType = "session_failed"
)

// Event is one observation of pipeline progress. Only the fields relevant
// to its Type are populated.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Phase     Status    `json:"phase"`
	Round     int       `json:"round"`
	Time      time.Time `json:"time"`

	Query       string               `json:"query,omitempty"`        // session_started
	SubQuestion *planner.SubQuestion `json:"sub_question,omitempty"` // search lifecycle
	Delta       string               `json:"delta,omitempty"`        // search_progress
	Note        *search.Note         `json:"note,omitempty"`         // search_completed
	Failure     *search.Failure      `json:"failure,omitempty"`      // search_failed
	Answer      string               `json:"answer,omitempty"`       // synthesis_completed
	Gaps        []synthesis.Gap      `json:"gaps,omitempty"`         // gaps_detected
	Metrics     *Metrics             `json:"metrics,omitempty"`      // session_completed
	Error       string               `json:"error,omitempty"`        // session_failed
}

// EventSink receives pipeline events. The orchestrator invokes it
// sequentially from one goroutine, so implementations need no locking; a
// slow sink slows the pipeline.
type EventSink interface {
	OnEvent(e Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(e Event)

func (f SinkFunc) OnEvent(e Event) { f(e) }

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnEvent(Event) {}

// MultiSink fans each event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) OnEvent(e Event) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(e)
		}
	}
}
