package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/echoscribehq/echoscribe/app/models"
)

// HandlerFunc processes one verified event. A returned error is treated as
// transient: the event is not recorded as processed and the provider's
// redelivery re-attempts it.
type HandlerFunc func(ctx context.Context, ev *Event) error

// Outcome describes what a dispatch did, including short-circuited results
// for redelivered events.
type Outcome struct {
	Kind      EventKind
	Duplicate bool
	Ignored   bool
}

// Dispatcher routes verified events to their registered handler exactly once
// per event identity. It is constructed at startup and passed into request
// handling; there is no package-level instance.
type Dispatcher struct {
	repo     Repository
	handlers map[EventKind]HandlerFunc
}

// NewDispatcher creates a dispatcher with an empty registry.
func NewDispatcher(repo Repository) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		handlers: make(map[EventKind]HandlerFunc),
	}
}

// Register binds a handler to an event kind. Later registrations for the
// same kind replace earlier ones.
func (d *Dispatcher) Register(kind EventKind, h HandlerFunc) {
	d.handlers[kind] = h
}

// Dispatch applies ev's side effects at most once. Redelivered events with a
// recorded outcome short-circuit without invoking the handler. Unknown kinds
// are logged and acknowledged as a no-op success so the provider stops
// retrying them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) (*Outcome, error) {
	existing, err := d.repo.GetProcessedEvent(ev.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: dedup lookup: %v", ErrHandlerFailure, err)
	}
	if existing != nil {
		return &Outcome{
			Kind:      ev.Kind,
			Duplicate: true,
			Ignored:   existing.Outcome == models.WebhookOutcomeIgnored,
		}, nil
	}

	handler, ok := d.handlers[ev.Kind]
	if !ok || ev.Kind == EventKindUnknown {
		log.Warnf("[Billing] Ignoring event %s with unhandled type %q", ev.ID, ev.RawType)
		if err := d.record(ev, models.WebhookOutcomeIgnored); err != nil {
			return nil, fmt.Errorf("%w: record ignored event: %v", ErrHandlerFailure, err)
		}
		return &Outcome{Kind: ev.Kind, Ignored: true}, nil
	}

	if err := handler(ctx, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHandlerFailure, ev.Kind, err)
	}

	// If this insert fails the provider retries the whole delivery; the
	// handler's recency guard makes re-applying the same event a no-op.
	if err := d.record(ev, models.WebhookOutcomeSuccess); err != nil {
		return nil, fmt.Errorf("%w: record processed event: %v", ErrHandlerFailure, err)
	}
	return &Outcome{Kind: ev.Kind}, nil
}

func (d *Dispatcher) record(ev *Event, outcome string) error {
	now := time.Now()
	return d.repo.RecordProcessedEvent(&models.WebhookEvent{
		ProviderEventID: ev.ID,
		EventType:       ev.RawType,
		PayloadJSON:     string(ev.RawBody),
		Outcome:         outcome,
		ProcessedAt:     &now,
	})
}
