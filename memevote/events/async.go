package events

import (
	"context"
	"sync"

	"github.com/pavlenkotm/memevote/utils/log"
	"go.uber.org/zap"
)

// Async delivers events to another sink from a
// background goroutine. Events that arrive while
// the queue is full are dropped.
type Async struct {
	sink   Sink
	logger *zap.Logger
	queue  chan queued
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type queued struct {
	fields []zap.Field
	event  Event
}

// NewAsync starts delivering to sink with room
// for buffer pending events. Close must be called
// to stop the delivery goroutine.
func NewAsync(sink Sink, buffer int, logger *zap.Logger) *Async {
	if logger == nil {
		logger = zap.L()
	}

	if buffer < 1 {
		buffer = 1
	}

	async := &Async{
		sink:   sink,
		logger: logger.With(zap.String("component", "async-sink")),
		queue:  make(chan queued, buffer),
		done:   make(chan struct{}),
	}

	go async.run()

	return async
}

// Notify implements Sink.Notify. It never blocks.
func (async *Async) Notify(ctx context.Context, event Event) {
	async.mu.RLock()
	defer async.mu.RUnlock()

	if async.closed {
		async.logger.Warn("dropped event after close", zap.String("event", event.EventType()))

		return
	}

	select {
	case async.queue <- queued{fields: log.Fields(ctx), event: event}:
	default:
		async.logger.Warn("dropped event", zap.String("event", event.EventType()), zap.Int("capacity", cap(async.queue)))
	}
}

// Close stops accepting events and waits until
// every queued event has been delivered
func (async *Async) Close() {
	async.mu.Lock()

	if async.closed {
		async.mu.Unlock()
		<-async.done

		return
	}

	async.closed = true
	close(async.queue)
	async.mu.Unlock()

	<-async.done
}

func (async *Async) run() {
	defer close(async.done)

	for q := range async.queue {
		async.deliver(q)
	}
}

func (async *Async) deliver(q queued) {
	defer func() {
		if r := recover(); r != nil {
			async.logger.Error("sink panicked", zap.String("event", q.event.EventType()), zap.Any("panic", r))
		}
	}()

	async.sink.Notify(log.WithFields(context.Background(), q.fields...), q.event)
}
