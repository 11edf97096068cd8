package audit

import (
	"context"
	"log/slog"
)

// Worker drains audit events from an inbox channel and hands them to the
// publisher, keeping event emission off the request path. A publish failure
// is logged and dropped; audit must never block or fail a registration.
type Worker struct {
	publisher Publisher
	inbox     <-chan Event
	logger    *slog.Logger
}

func NewWorker(publisher Publisher, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, inbox: inbox, logger: logger}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Emit(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit publish failed",
					"kind", string(event.Kind),
					"session_id", event.SessionID,
					"error", err,
				)
			}
		}
	}
}

// Emitter offers a non-blocking send into the worker's inbox. Events are
// dropped (and counted by the caller's logs) when the buffer is full.
type Emitter struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewEmitter(inbox chan<- Event, logger *slog.Logger) *Emitter {
	return &Emitter{inbox: inbox, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, event Event) error {
	select {
	case e.inbox <- event:
	default:
		e.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"kind", string(event.Kind),
			"session_id", event.SessionID,
		)
	}
	return nil
}
