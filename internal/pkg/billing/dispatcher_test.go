package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/echoscribehq/echoscribe/app/models"
)

func testEvent(id string, kind EventKind) *Event {
	return &Event{
		ID:         id,
		Kind:       kind,
		RawType:    string(kind),
		OccurredAt: time.Unix(1700000000, 0),
		Data:       SubscriptionPayload{UserID: 7, CustomerID: "cus_1", PlanID: "pro-month"},
		RawBody:    []byte(`{}`),
	}
}

func TestDispatch_InvokesHandlerOncePerIdentity(t *testing.T) {
	repo := newMemoryRepository()
	d := NewDispatcher(repo)

	calls := 0
	d.Register(EventSubscriptionCreated, func(ctx context.Context, ev *Event) error {
		calls++
		return nil
	})

	ev := testEvent("evt_1", EventSubscriptionCreated)

	out, err := d.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if out.Duplicate {
		t.Fatalf("first dispatch reported duplicate")
	}

	out, err = d.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !out.Duplicate {
		t.Fatalf("redelivery not reported as duplicate")
	}
	if calls != 1 {
		t.Fatalf("handler invoked %d times, want 1", calls)
	}

	stored, err := repo.GetProcessedEvent("evt_1")
	if err != nil || stored == nil {
		t.Fatalf("processed event not recorded: %v", err)
	}
	if stored.Outcome != models.WebhookOutcomeSuccess {
		t.Fatalf("unexpected outcome %q", stored.Outcome)
	}
}

func TestDispatch_FailedHandlerLeavesEventUnprocessed(t *testing.T) {
	repo := newMemoryRepository()
	d := NewDispatcher(repo)

	boom := errors.New("store unavailable")
	fail := true
	calls := 0
	d.Register(EventSubscriptionCreated, func(ctx context.Context, ev *Event) error {
		calls++
		if fail {
			return boom
		}
		return nil
	})

	ev := testEvent("evt_2", EventSubscriptionCreated)

	if _, err := d.Dispatch(context.Background(), ev); !errors.Is(err, ErrHandlerFailure) {
		t.Fatalf("got %v, want ErrHandlerFailure", err)
	}
	if stored, _ := repo.GetProcessedEvent("evt_2"); stored != nil {
		t.Fatalf("failed event must not be recorded as processed")
	}

	// The provider retry now succeeds and the handler runs again.
	fail = false
	if _, err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("handler invoked %d times, want 2", calls)
	}
}

func TestDispatch_UnknownKindAcknowledged(t *testing.T) {
	repo := newMemoryRepository()
	d := NewDispatcher(repo)

	ev := testEvent("evt_3", EventKindUnknown)
	ev.RawType = "invoice.paid"

	out, err := d.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("unknown kind must not error: %v", err)
	}
	if !out.Ignored {
		t.Fatalf("unknown kind not reported as ignored")
	}

	stored, _ := repo.GetProcessedEvent("evt_3")
	if stored == nil || stored.Outcome != models.WebhookOutcomeIgnored {
		t.Fatalf("ignored event not recorded: %+v", stored)
	}

	// Redelivery of the ignored event short-circuits too.
	out, err = d.Dispatch(context.Background(), ev)
	if err != nil || !out.Duplicate || !out.Ignored {
		t.Fatalf("redelivered ignored event: out=%+v err=%v", out, err)
	}
}

func TestDispatch_RegisteredKindWithoutHandlerIsIgnored(t *testing.T) {
	repo := newMemoryRepository()
	d := NewDispatcher(repo)

	// subscription.canceled has no handler registered here.
	out, err := d.Dispatch(context.Background(), testEvent("evt_4", EventSubscriptionCanceled))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Ignored {
		t.Fatalf("expected ignored outcome for unregistered kind")
	}
}
