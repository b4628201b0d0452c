package billing

import (
	"encoding/json"
	"strings"
	"time"
)

// EventKind is the closed set of provider event types the dispatcher routes.
// Anything else maps to EventKindUnknown and is acknowledged without effect.
type EventKind string

const (
	EventSubscriptionCreated  EventKind = "subscription.created"
	EventSubscriptionUpdated  EventKind = "subscription.updated"
	EventSubscriptionCanceled EventKind = "subscription.canceled"
	EventKindUnknown          EventKind = "unknown"
)

// ParseEventKind maps a raw provider event type onto the closed kind set.
func ParseEventKind(raw string) EventKind {
	switch EventKind(strings.ToLower(strings.TrimSpace(raw))) {
	case EventSubscriptionCreated:
		return EventSubscriptionCreated
	case EventSubscriptionUpdated:
		return EventSubscriptionUpdated
	case EventSubscriptionCanceled:
		return EventSubscriptionCanceled
	default:
		return EventKindUnknown
	}
}

// SubscriptionPayload is the provider-agnostic subscription object embedded
// in billing events.
type SubscriptionPayload struct {
	UserID     uint   `json:"user_id"`
	CustomerID string `json:"customer_id"`
	PlanID     string `json:"plan_id"`
	Status     string `json:"status"`
}

// Event is a verified, decoded webhook event. RawBody is retained for the
// dedup log; the struct is never mutated after decoding.
type Event struct {
	ID         string
	Kind       EventKind
	RawType    string
	OccurredAt time.Time
	Data       SubscriptionPayload
	RawBody    []byte
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object SubscriptionPayload `json:"object"`
	} `json:"data"`
}

// DecodeEvent parses a raw webhook body into an Event. The caller must have
// verified the body's signature first.
func DecodeEvent(raw []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedPayload
	}
	if strings.TrimSpace(env.ID) == "" || strings.TrimSpace(env.Type) == "" {
		return nil, ErrMalformedPayload
	}

	return &Event{
		ID:         env.ID,
		Kind:       ParseEventKind(env.Type),
		RawType:    env.Type,
		OccurredAt: time.Unix(env.Created, 0).UTC(),
		Data:       env.Data.Object,
		RawBody:    append([]byte(nil), raw...),
	}, nil
}

// PlanTypeForPlanID derives the internal plan type from a provider plan
// reference, e.g. "pro-month" or "pro-year".
func PlanTypeForPlanID(planID string) string {
	id := strings.ToLower(strings.TrimSpace(planID))
	if strings.HasPrefix(id, "pro") {
		return "pro"
	}
	return "free"
}
