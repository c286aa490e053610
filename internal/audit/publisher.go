package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

// Publisher emits audit events with fail-closed semantics: the caller blocks
// until the event is persisted, and a persistence failure must fail the
// calling operation. Emit inside the business transaction so ledger mutation
// and audit entry commit or roll back together.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates a fail-closed audit publisher over the given store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously persists an audit event. Missing ID, timestamp, actor,
// and request ID are filled from context.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = event.Type.Category()
	}
	if event.Actor == "" {
		event.Actor = requestcontext.ActorID(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit append failed",
				"event_type", event.Type,
				"subject_id", event.SubjectID,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit entry could not be persisted")
	}
	return nil
}

// List exposes the audit trail for admin and data-export flows.
func (p *Publisher) List(ctx context.Context, q Query) ([]Event, error) {
	events, err := p.store.List(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit query failed")
	}
	return events, nil
}
