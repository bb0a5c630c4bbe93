package events

import (
	"context"
	"sync"
)

// Recorder is a sink that remembers every
// event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Sink.Notify
func (recorder *Recorder) Notify(ctx context.Context, event Event) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	recorder.events = append(recorder.events, event)
}

// Events returns a copy of the events received so far
func (recorder *Recorder) Events() []Event {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	events := make([]Event, len(recorder.events))
	copy(events, recorder.events)

	return events
}

// Reset forgets all recorded events
func (recorder *Recorder) Reset() {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	recorder.events = nil
}
