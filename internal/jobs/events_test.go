package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeLog, Message: "1"})
	bus.Publish(Event{Type: EventTypeLog, Message: "2"})
	bus.Publish(Event{Type: EventTypeProgress, Processed: 1, Total: 2})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventBusChangedWakesWaiters checks the publish notification channel.
func TestEventBusChangedWakesWaiters(t *testing.T) {
	bus := NewEventBus(10)
	changed := bus.Changed()

	go bus.Publish(Event{Message: "wake"})

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("Changed() channel was not closed by Publish")
	}
	if got := bus.Since(0); len(got) != 1 || got[0].Message != "wake" {
		t.Fatalf("events = %+v", got)
	}
}

// TestEventBusFollowDeliversBacklogAndNewEvents checks ordered streaming.
func TestEventBusFollowDeliversBacklogAndNewEvents(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{Message: "old"})
	bus.Publish(Event{Message: "backlog"})

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- bus.Follow(ctx, 1, func(e Event) { got <- e.Message })
	}()

	want := []string{"backlog", "live"}
	for i, w := range want {
		if i == 1 {
			bus.Publish(Event{Message: "live"})
		}
		select {
		case msg := <-got:
			if msg != w {
				t.Fatalf("event %d = %q, want %q", i, msg, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Follow error = %v, want context.Canceled", err)
	}
}
