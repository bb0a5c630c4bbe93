// Package events delivers notifications about registry
// changes. Delivery is best-effort: sinks have no way
// to report failure back to the operation that emitted
// the event.
package events

import (
	"context"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
)

var (
	_ Event = (*memevotepb.MemeCreated)(nil)
	_ Event = (*memevotepb.VoteCast)(nil)
)

// Event is a notification emitted by the registry.
// It is implemented by *memevotepb.MemeCreated and
// *memevotepb.VoteCast.
type Event interface {
	EventType() string
	String() string
}

// Sink receives events
type Sink interface {
	// Notify delivers an event. Implementations must
	// not retain ctx beyond the call.
	Notify(ctx context.Context, event Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, event Event)

// Notify implements Sink.Notify
func (fn SinkFunc) Notify(ctx context.Context, event Event) {
	fn(ctx, event)
}

// Nop is a sink that discards every event
var Nop Sink = SinkFunc(func(ctx context.Context, event Event) {})

// Multi fans events out to sinks in order.
// Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))

	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}

	if len(filtered) == 1 {
		return filtered[0]
	}

	return multi(filtered)
}

type multi []Sink

func (sinks multi) Notify(ctx context.Context, event Event) {
	for _, sink := range sinks {
		sink.Notify(ctx, event)
	}
}
