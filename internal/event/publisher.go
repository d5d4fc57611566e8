package event

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storefront-backend/internal/model"
)

// Handler reacts to exactly one event type. Handlers must be idempotent:
// the same event may be delivered more than once.
type Handler interface {
	EventType() string
	Handle(ctx context.Context, e model.DomainEvent) error
}

// Publisher durably stores each event and then delivers it in-process to
// every handler registered for its type.
type Publisher struct {
	store    *Store
	handlers map[string][]Handler
}

func NewPublisher(store *Store) *Publisher {
	return &Publisher{
		store:    store,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler. Registration happens once at startup
// and is not safe to call concurrently with Publish.
func (p *Publisher) Subscribe(h Handler) {
	p.handlers[h.EventType()] = append(p.handlers[h.EventType()], h)
}

func (p *Publisher) Store() *Store {
	return p.store
}

// Publish appends the event to the log, then invokes each matching
// handler. A failed append is logged for operational alerting but does
// not stop delivery: the aggregate change producing this event has
// already been committed, and losing the audit row must not hide the
// fact from the handlers. Handler errors are logged and returned so the
// originating use case decides whether to fail the whole operation.
func (p *Publisher) Publish(ctx context.Context, e model.DomainEvent) error {
	if err := p.store.Append(ctx, e); err != nil {
		log.Printf("ALERT: event log append failed for %s %s: %v", e.EventType(), e.EventID(), err)
	}

	var errs []error
	for _, h := range p.handlers[e.EventType()] {
		if err := h.Handle(ctx, e); err != nil {
			log.Printf("ALERT: handler for %s %s failed: %v", e.EventType(), e.EventID(), err)
			errs = append(errs, fmt.Errorf("handle %s: %w", e.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

// PublishAll publishes in list order, sequentially, preserving the
// causal order between events produced by one aggregate operation.
// Later events are still published when an earlier one fails; each is a
// committed fact in its own right.
func (p *Publisher) PublishAll(ctx context.Context, events []model.DomainEvent) error {
	var errs []error
	for _, e := range events {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
