// Package publisher emits admin audit events with fail-closed semantics.
//
// Emit writes synchronously through the store. If the write fails an error is
// returned and the calling operation must fail, so that a state change is
// never durable without its audit record. Call Emit with the ctx of the
// enclosing unit of work.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	id "landtrust/pkg/domain"
	audit "landtrust/pkg/platform/audit"
	"landtrust/pkg/requestcontext"
)

// Publisher emits admin events.
type Publisher struct {
	store    audit.Store
	logger   *slog.Logger
	failures prometheus.Counter
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithFailureCounter counts persistence failures.
func WithFailureCounter(c prometheus.Counter) Option {
	return func(p *Publisher) {
		p.failures = c
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and appends an event. The returned error must abort the
// caller's unit of work.
func (p *Publisher) Emit(ctx context.Context, event audit.AdminEvent) error {
	if event.Subject == "" {
		return fmt.Errorf("admin event requires Subject")
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("admin event has unknown type %q", event.Type)
	}
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.failures != nil {
			p.failures.Inc()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "admin audit write failed",
				"subject", event.Subject,
				"type", event.Type,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return fmt.Errorf("admin audit persistence failed: %w", err)
	}
	return nil
}

// History lists events for a subject, oldest first.
func (p *Publisher) History(ctx context.Context, subject string) ([]audit.AdminEvent, error) {
	return p.store.ListBySubject(ctx, subject)
}
