package research

import (
	"testing"
	"time"
)

func TestSinkFunc(t *testing.T) {
	var got Event
	sink := SinkFunc(func(e Event) { got = e })

	sink.OnEvent(Event{Type: EventSessionStarted, SessionID: "s-1"})
	if got.Type != EventSessionStarted || got.SessionID != "s-1" {
		t.Errorf("got %+v", got)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	var first, second []EventType
	sinks := MultiSink{
		SinkFunc(func(e Event) { first = append(first, e.Type) }),
		nil, // tolerated
		SinkFunc(func(e Event) { second = append(second, e.Type) }),
	}

	sinks.OnEvent(Event{Type: EventSessionStarted, Time: time.Now()})
	sinks.OnEvent(Event{Type: EventSessionCompleted, Time: time.Now()})

	want := []EventType{EventSessionStarted, EventSessionCompleted}
	for i, w := range want {
		if first[i] != w || second[i] != w {
			t.Fatalf("sinks diverge at %d: %v vs %v", i, first, second)
		}
	}
}

func TestNopSink(t *testing.T) {
	// Must not panic on any event.
	NopSink{}.OnEvent(Event{Type: EventSessionFailed})
}
