// Package event provides a lifecycle event stream for graph runs.
//
// The scheduler publishes typed events to an injected Sink as a run
// progresses. Emission never blocks the scheduler: sinks that cannot
// keep up drop events rather than stalling execution.
package event

import (
	"sync/atomic"
	"time"
)

// Type identifies an event kind.
type Type string

// Run and node lifecycle event types.
const (
	RunStarted      Type = "run.started"
	RunFinished     Type = "run.finished"
	NodeStarted     Type = "node.started"
	NodeFinished    Type = "node.finished"
	NodeErrored     Type = "node.errored"
	MergeCompleted  Type = "merge.completed"
	CheckpointSaved Type = "checkpoint.saved"
)

// Event is one lifecycle notification from a run.
type Event struct {
	// Type is the event kind.
	Type Type

	// RunID identifies the run this event belongs to.
	RunID string

	// Node is the node involved, if any.
	Node string

	// Round is the scheduling round, starting at 1. 0 for run-level events.
	Round int

	// Status is the terminal run status for RunFinished events.
	Status string

	// Fields are the state fields touched, for node and merge events.
	Fields []string

	// Err is set for NodeErrored and failed RunFinished events.
	Err error

	// Time is when the event was emitted.
	Time time.Time
}

// Sink receives events. Implementations must not block: the scheduler
// calls Emit inline on its hot path.
type Sink interface {
	Emit(evt Event)
}

// ChannelSink delivers events over a buffered channel, dropping events
// when the buffer is full so a slow consumer never stalls the run.
type ChannelSink struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChannelSink creates a sink with the given buffer size.
// A size below 1 defaults to 64.
func NewChannelSink(size int) *ChannelSink {
	if size < 1 {
		size = 64
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

// Emit implements Sink. Full buffers drop the event.
func (s *ChannelSink) Emit(evt Event) {
	select {
	case s.ch <- evt:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded due to a full buffer.
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close closes the event channel. Emit must not be called after Close.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(evt Event)

// Emit implements Sink.
func (f SinkFunc) Emit(evt Event) {
	f(evt)
}
