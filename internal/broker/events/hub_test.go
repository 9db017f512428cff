package events

import (
	"testing"
	"time"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(Event{Kind: KindCallUpdated, Payload: "call-1"})

	select {
	case e := <-ch:
		if e.Kind != KindCallUpdated {
			t.Fatalf("event kind = %q, want %q", e.Kind, KindCallUpdated)
		}
		if e.At.IsZero() {
			t.Fatalf("event At not stamped")
		}
	case <-time.After(time.Second):
		t.Fatalf("no event received")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	cancel()

	// Publishing after cancel must not panic on the closed channel.
	hub.Publish(Event{Kind: KindCallUpdated})

	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after cancel")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(Event{Kind: KindSessionUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}
}
