package audit

import (
	"context"
	"log/slog"

	"incorp/pkg/requestcontext"
)

// Sink persists or forwards audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher records every event in the structured log and, when a queue is
// attached, hands it to the background worker. It never blocks the caller:
// a full queue drops the event with a warning.
type Publisher struct {
	logger *slog.Logger
	queue  chan<- Event
}

type PublisherOption func(*Publisher)

// WithQueue attaches the inbox of a Worker.
func WithQueue(queue chan<- Event) PublisherOption {
	return func(p *Publisher) {
		p.queue = queue
	}
}

func NewPublisher(logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit enriches the event from ctx (time, principal, request id, client ip)
// and publishes it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ActorID == "" {
		if principal := requestcontext.PrincipalFrom(ctx); !principal.IsAnonymous() {
			event.ActorID = principal.ID.String()
			event.ActorRole = string(principal.Role)
		}
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "audit",
			"action", string(event.Action),
			"actor_id", event.ActorID,
			"subject", event.Subject,
			"request_id", event.RequestID,
		)
	}

	if p.queue == nil {
		return nil
	}
	select {
	case p.queue <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit queue full, event dropped",
				"action", string(event.Action),
				"request_id", event.RequestID,
			)
		}
	}
	return nil
}
