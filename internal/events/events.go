// Package events defines the auction engine's emitted event envelope
// and a buffered recorder, adapted from the teacher's pkg/idr event
// recorder: events are appended to a bounded in-memory buffer and
// flushed by a sink rather than blocking the settlement hot path.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Type names the six event kinds fixed by spec §6.
type Type string

const (
	AuctionCreated   Type = "AuctionCreated"
	BidPlaced        Type = "BidPlaced"
	BidRevealed      Type = "BidRevealed"
	Claimed          Type = "Claimed"
	Withdrawn        Type = "Withdrawn"
	AuctionCancelled Type = "AuctionCancelled"
)

// Event is one emitted domain event. Data carries the event-specific
// fields keyed by name; it is a map, so the fields have no defined order.
type Event struct {
	ID        string
	Type      Type
	AuctionID uint64
	Data      map[string]any
}

// New builds an Event with a fresh correlation ID.
func New(t Type, auctionID uint64, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		AuctionID: auctionID,
		Data:      data,
	}
}

// Sink receives flushed events. A production sink might forward to a
// message bus or persistence log; tests use a slice-backed sink.
type Sink interface {
	Record(events []Event)
}

// Recorder buffers events and flushes them to a Sink once the buffer
// reaches its configured size, mirroring idr.EventRecorder's
// buffer-then-flush shape.
type Recorder struct {
	mu         sync.Mutex
	sink       Sink
	buffer     []Event
	bufferSize int
}

// NewRecorder creates a Recorder flushing to sink once bufferSize events
// have accumulated. A bufferSize <= 0 flushes every event immediately.
func NewRecorder(sink Sink, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Recorder{sink: sink, bufferSize: bufferSize}
}

// Emit appends events to the buffer, flushing if the buffer is full.
func (r *Recorder) Emit(_ context.Context, evts ...Event) {
	if len(evts) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, evts...)
	if len(r.buffer) >= r.bufferSize {
		r.flushLocked()
	}
}

// Flush forces any buffered events out to the sink.
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

func (r *Recorder) flushLocked() {
	if len(r.buffer) == 0 {
		return
	}
	pending := r.buffer
	r.buffer = nil
	if r.sink != nil {
		r.sink.Record(pending)
	}
}

// SliceSink is an in-memory Sink used by tests and the demo CLI.
type SliceSink struct {
	mu   sync.Mutex
	seen []Event
}

// NewSliceSink creates an empty SliceSink.
func NewSliceSink() *SliceSink {
	return &SliceSink{}
}

// Record implements Sink.
func (s *SliceSink) Record(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, events...)
}

// All returns every event recorded so far.
func (s *SliceSink) All() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.seen...)
}
