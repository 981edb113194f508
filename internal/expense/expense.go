// Package expense defines the cost-tracking capability the LLM detector
// emits to, and a concurrency-safe in-memory implementation for callers
// that don't have a real expense store wired up.
//
// A persistent expense store is a deployment concern, not a core one;
// Tracker is an interface precisely so the core never depends on one.
package expense

import (
	"sync"

	"github.com/google/uuid"
)

// Event is one billable LLM call.
type Event struct {
	// ID uniquely identifies this emission so a downstream store can
	// deduplicate retried Track calls.
	ID            string
	Model         string
	Operation     string
	InputTokens   int
	OutputTokens  int
	Metadata      map[string]any
}

// NewEvent stamps a new Event with a fresh ID.
func NewEvent(model, operation string, inputTokens, outputTokens int, metadata map[string]any) Event {
	return Event{
		ID:           uuid.NewString(),
		Model:        model,
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Metadata:     metadata,
	}
}

// Tracker is the cost-tracking capability consumed by the LLM detector.
// Track must be safe for concurrent use: the detector's bounded-concurrency
// chunk fan-out may call it from multiple goroutines at once.
type Tracker interface {
	Track(e Event)
}

// InMemoryTracker accumulates events in memory, guarded by a single mutex.
// Contention is not a concern here: Track does nothing but append to a
// slice, so a single mutex is sufficient.
type InMemoryTracker struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemoryTracker returns a ready-to-use InMemoryTracker.
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{}
}

// Track records e.
func (t *InMemoryTracker) Track(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// Events returns a copy of all recorded events.
func (t *InMemoryTracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// TotalTokens returns the summed input and output token counts across all
// recorded events.
func (t *InMemoryTracker) TotalTokens() (input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.events {
		input += e.InputTokens
		output += e.OutputTokens
	}
	return input, output
}
