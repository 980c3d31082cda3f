// Package events carries workflow progress notifications from long-running
// operations to whatever front end is watching: the CLI, a desktop notifier,
// or an embedding program.
package events

import (
	"sync"
	"time"
)

// Event types published during a workflow run.
const (
	OperationStarted  = "operation_started"
	OperationComplete = "operation_complete"
	OperationFailed   = "operation_failed"
	DecisionMade      = "decision_made"
	ProgressUpdate    = "progress_update"
)

// Event is a single progress notification.
type Event struct {
	Type      string         `json:"type"`
	Operation string         `json:"operation"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// channel that has fallen behind drops events rather than stalling the run.
type Bus struct {
	mu       sync.Mutex
	handlers []func(Event)
	channels []chan Event
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler invoked synchronously for every published
// event. Handlers must be fast; slow work belongs behind Channel.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// Channel returns a buffered channel receiving every published event. Events
// are dropped for this subscriber if the buffer is full.
func (b *Bus) Channel() <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, ch)
	return ch
}

// Publish delivers an event to all subscribers. A nil bus is a valid no-op
// publisher, so operation code never needs to guard.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b.mu.Lock()
	handlers := make([]func(Event), len(b.handlers))
	copy(handlers, b.handlers)
	channels := make([]chan Event, len(b.channels))
	copy(channels, b.channels)
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
	for _, ch := range channels {
		select {
		case ch <- evt:
		default:
		}
	}
}
