package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/echoscribehq/echoscribe/app/models"
)

// Attempts before giving up on the conditional billing-record write. Each
// retry re-reads the row, so losing a race to a newer event ends cleanly via
// the recency guard instead.
const subscriptionUpdateRetries = 5

// SubscriptionHandler applies billing-lifecycle transitions to a user's
// billing record. Dedup by event identity happens in the dispatcher; this
// handler additionally guards by recency so an older event about a
// superseded state never regresses the record.
type SubscriptionHandler struct {
	repo Repository
}

// NewSubscriptionHandler creates a handler over the given repository.
func NewSubscriptionHandler(repo Repository) *SubscriptionHandler {
	return &SubscriptionHandler{repo: repo}
}

// HandleEvent implements HandlerFunc for the subscription.* event kinds.
func (h *SubscriptionHandler) HandleEvent(ctx context.Context, ev *Event) error {
	for attempt := 0; attempt < subscriptionUpdateRetries; attempt++ {
		rec, err := h.lookupRecord(ev)
		if err != nil {
			return err
		}

		if rec == nil {
			if ev.Data.UserID == 0 {
				// No local user to attach the subscription to. Acknowledge so
				// the provider stops redelivering an event we can never apply.
				log.Warnf("[Billing] Event %s references unknown customer %q, skipping", ev.ID, ev.Data.CustomerID)
				return nil
			}
			rec = &models.BillingRecord{
				UserID:   ev.Data.UserID,
				PlanType: models.PlanTypeFree,
				Status:   models.BillingStatusNone,
			}
			if err := h.repo.CreateBillingRecord(rec); err != nil {
				// Likely a concurrent create for the same user; re-read.
				continue
			}
		}

		// Out-of-order guard: an event not strictly newer than the last
		// applied one is skipped as success.
		if rec.LastEventAt != nil && !ev.OccurredAt.After(*rec.LastEventAt) {
			return nil
		}

		next, ok := nextStatus(rec.Status, ev)
		if !ok {
			// Transition not in the table (e.g. a created event for an
			// already-active subscription); skip without touching the row.
			return nil
		}

		updated := *rec
		updated.Status = next
		updated.PlanID = ev.Data.PlanID
		updated.PlanType = PlanTypeForPlanID(ev.Data.PlanID)
		if cid := strings.TrimSpace(ev.Data.CustomerID); cid != "" {
			updated.CustomerID = cid
		}
		occurred := ev.OccurredAt
		updated.LastEventAt = &occurred

		applied, err := h.repo.UpdateBillingRecordIfUnchanged(&updated, rec.LastEventAt)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		// Conditional write lost to a concurrent event; retry from a fresh
		// read.
	}
	return fmt.Errorf("subscription update for event %s: conditional write retries exhausted", ev.ID)
}

func (h *SubscriptionHandler) lookupRecord(ev *Event) (*models.BillingRecord, error) {
	if ev.Data.UserID != 0 {
		return h.repo.GetBillingRecordByUser(ev.Data.UserID)
	}
	if cid := strings.TrimSpace(ev.Data.CustomerID); cid != "" {
		return h.repo.GetBillingRecordByCustomer(cid)
	}
	return nil, nil
}

// nextStatus resolves the state machine over {none, active, past_due,
// canceled}. The bool result is false for pairs outside the transition
// table.
func nextStatus(current string, ev *Event) (string, bool) {
	switch ev.Kind {
	case EventSubscriptionCreated:
		switch current {
		case models.BillingStatusNone, models.BillingStatusCanceled, "":
			return models.BillingStatusActive, true
		}
	case EventSubscriptionUpdated:
		switch strings.ToLower(strings.TrimSpace(ev.Data.Status)) {
		case models.BillingStatusActive:
			if current == models.BillingStatusActive || current == models.BillingStatusPastDue {
				return models.BillingStatusActive, true
			}
		case models.BillingStatusPastDue:
			if current == models.BillingStatusActive {
				return models.BillingStatusPastDue, true
			}
		}
	case EventSubscriptionCanceled:
		return models.BillingStatusCanceled, true
	}
	return "", false
}
