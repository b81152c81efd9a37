package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies lifecycle events emitted during ingestion.
type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event describes a point in a document's ingestion lifecycle. For a given
// document the pipeline emits exactly one started event, zero or more
// progress events with non-decreasing Progress, and exactly one terminal
// completed or failed event.
type Event struct {
	Type       EventType
	DocumentID uuid.UUID

	// Progress is the overall fraction in [0, 1]. Meaningful for progress
	// events; 1.0 on completed.
	Progress float64

	// Stage is the pipeline stage the event relates to.
	Stage Stage

	// ChunksProcessed and ChunksTotal report how many chunks have been
	// embedded so far. ChunksTotal is zero until the document is chunked.
	ChunksProcessed int
	ChunksTotal     int

	// Error carries the failure message on failed events.
	Error string

	Timestamp time.Time
}

// EventSink receives ingestion lifecycle events. Publish is called
// synchronously from pipeline goroutines and must not block.
type EventSink interface {
	Publish(event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(event Event)

func (f EventSinkFunc) Publish(event Event) {
	f(event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// multiSink fans one event out to several sinks in order.
type multiSink []EventSink

func (m multiSink) Publish(event Event) {
	for _, sink := range m {
		sink.Publish(event)
	}
}
