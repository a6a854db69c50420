package jobs

import (
	"context"
	"sync"
	"time"

	"video-transcriber/internal/domain"
)

// EventType classifies messages emitted during a batch run.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeLog      EventType = "log"
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	RunID     string           `json:"runId"`
	Type      EventType        `json:"type"`
	Status    domain.JobStatus `json:"status,omitempty"`
	Message   string           `json:"message,omitempty"`
	Processed int              `json:"processed,omitempty"`
	Total     int              `json:"total,omitempty"`
	Fraction  float64          `json:"fraction,omitempty"`
	Source    string           `json:"source,omitempty"`
	TextPath  string           `json:"textPath,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	notify    chan struct{}
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		notify:    make(chan struct{}),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	close(b.notify)
	b.notify = make(chan struct{})
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Changed returns a channel closed on the next Publish.
func (b *EventBus) Changed() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}

// Follow calls fn for every event after since, in order, until ctx ends.
func (b *EventBus) Follow(ctx context.Context, since int64, fn func(Event)) error {
	for {
		changed := b.Changed()
		for _, event := range b.Since(since) {
			fn(event)
			since = event.Seq
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
