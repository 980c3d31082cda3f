package events

import (
	"testing"
	"time"
)

func TestSubscribeReceivesEvents(t *testing.T) {
	bus := NewBus()
	var got []Event
	bus.Subscribe(func(evt Event) { got = append(got, evt) })

	bus.Publish(Event{Type: OperationStarted, Operation: "plan-phase", Message: "run 1"})
	bus.Publish(Event{Type: OperationComplete, Operation: "plan-phase"})

	if len(got) != 2 || got[0].Type != OperationStarted || got[1].Type != OperationComplete {
		t.Fatalf("unexpected events: %+v", got)
	}
	if got[0].Timestamp.IsZero() {
		t.Fatal("Publish should stamp events")
	}
}

func TestChannelReceivesEvents(t *testing.T) {
	bus := NewBus()
	ch := bus.Channel()
	bus.Publish(Event{Type: DecisionMade, Message: "fallback used"})

	select {
	case evt := <-ch:
		if evt.Type != DecisionMade {
			t.Fatalf("type = %q", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("event never arrived on channel")
	}
}

func TestPublishNeverBlocksOnFullChannel(t *testing.T) {
	bus := NewBus()
	_ = bus.Channel() // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			bus.Publish(Event{Type: ProgressUpdate})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Type: OperationFailed}) // must not panic
}
