package audit

import (
	"context"
	"log/slog"
	"time"

	"incorp/pkg/platform/circuit"
)

const drainTimeout = 5 * time.Second

// Worker consumes audit events from a channel and appends them to a sink. A
// failing sink is logged and the event skipped; the worker keeps running.
// After repeated failures the breaker opens and events are written to the log
// instead until a probe succeeds.
type Worker struct {
	sink    Sink
	inbox   chan Event
	logger  *slog.Logger
	breaker *circuit.Breaker
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithBreaker replaces the default sink breaker.
func WithBreaker(b *circuit.Breaker) WorkerOption {
	return func(w *Worker) {
		w.breaker = b
	}
}

// NewWorker creates a worker with a buffered inbox of size buffer.
func NewWorker(sink Sink, buffer int, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Worker{
		sink:    sink,
		inbox:   make(chan Event, buffer),
		logger:  logger,
		breaker: circuit.New("audit-sink"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Inbox is the send side handed to the Publisher.
func (w *Worker) Inbox() chan<- Event {
	return w.inbox
}

// Run delivers events until ctx is cancelled, then drains what is already
// queued within a short grace period.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if !w.breaker.Allow() {
		w.fallback(ctx, event)
		return
	}
	if err := w.sink.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to deliver audit event",
			"action", string(event.Action),
			"request_id", event.RequestID,
			"error", err,
		)
		if _, change := w.breaker.RecordFailure(); change.Opened {
			w.logger.WarnContext(ctx, "audit sink circuit opened", "breaker", w.breaker.Name())
		}
		return
	}
	if _, change := w.breaker.RecordSuccess(); change.Closed {
		w.logger.InfoContext(ctx, "audit sink circuit closed", "breaker", w.breaker.Name())
	}
}

// fallback keeps the record in the log while the sink is unavailable.
func (w *Worker) fallback(ctx context.Context, event Event) {
	w.logger.WarnContext(ctx, "audit event not delivered, sink circuit open",
		"action", string(event.Action),
		"actor_id", event.ActorID,
		"subject", event.Subject,
		"request_id", event.RequestID,
	)
}
