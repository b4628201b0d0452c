package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/echoscribehq/echoscribe/app/models"
	"github.com/echoscribehq/echoscribe/internal/pkg/entitlements"
)

// Retry budget for the optimistic write loop. Conflicts only happen between
// increments for the same user, so a handful of retries is plenty.
const usageUpdateRetries = 10

// PlanSource resolves the billing record whose plan determines the quota.
// The billing repository satisfies this.
type PlanSource interface {
	GetBillingRecordByUser(userID uint) (*models.BillingRecord, error)
}

// IncrementResult reports the ledger state after an increment. QuotaExceeded
// is a business signal for gating future uploads; the usage it reports was
// still recorded in full.
type IncrementResult struct {
	MinutesAdded        int64
	MonthlyUsageMinutes int64
	TotalUsageMinutes   int64
	QuotaMinutes        int64
	QuotaExceeded       bool
}

// Ledger is the accounting engine for transcribed minutes. Increments are
// monthly-bounded and monotonic; the monthly counter resets lazily on the
// first increment crossing a calendar-month boundary.
type Ledger struct {
	repo  Repository
	plans PlanSource
	now   func() time.Time
}

// NewLedger creates a ledger over the given stores.
func NewLedger(repo Repository, plans PlanSource) *Ledger {
	return &Ledger{repo: repo, plans: plans, now: time.Now}
}

// Increment charges durationSeconds of transcription to userID. Partial
// minutes round up, so any positive duration costs at least one minute.
// Usage is recorded unconditionally; callers decide what to do with the
// QuotaExceeded signal.
func (l *Ledger) Increment(ctx context.Context, userID uint, durationSeconds int64) (*IncrementResult, error) {
	minutes := CeilMinutes(durationSeconds)
	if minutes <= 0 {
		return nil, fmt.Errorf("usage: non-positive duration %ds for user %d", durationSeconds, userID)
	}
	now := l.now()

	for attempt := 0; attempt < usageUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := l.repo.GetOrCreateUsageRecord(userID, now)
		if err != nil {
			return nil, err
		}

		updated := *rec
		if !rec.SameResetMonth(now) {
			// The reset rides the same conditional write as the increment,
			// so it applies exactly once per boundary.
			updated.MonthlyUsageMinutes = 0
			updated.LastResetDate = now
		}
		updated.MonthlyUsageMinutes += minutes
		updated.TotalUsageMinutes += minutes
		updated.Version = rec.Version + 1

		applied, err := l.repo.UpdateUsageIfVersion(&updated, rec.Version)
		if err != nil {
			return nil, err
		}
		if !applied {
			continue
		}

		quota, err := l.quotaFor(userID)
		if err != nil {
			return nil, err
		}
		return &IncrementResult{
			MinutesAdded:        minutes,
			MonthlyUsageMinutes: updated.MonthlyUsageMinutes,
			TotalUsageMinutes:   updated.TotalUsageMinutes,
			QuotaMinutes:        quota,
			QuotaExceeded:       updated.MonthlyUsageMinutes > quota,
		}, nil
	}
	return nil, fmt.Errorf("usage: increment for user %d: version conflict retries exhausted", userID)
}

// AddUploadBytes accumulates stored bytes for userID through the same
// optimistic write path as minute increments.
func (l *Ledger) AddUploadBytes(ctx context.Context, userID uint, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	now := l.now()

	for attempt := 0; attempt < usageUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := l.repo.GetOrCreateUsageRecord(userID, now)
		if err != nil {
			return err
		}

		updated := *rec
		updated.UsageBytes += bytes
		updated.Version = rec.Version + 1

		applied, err := l.repo.UpdateUsageIfVersion(&updated, rec.Version)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
	}
	return fmt.Errorf("usage: byte accounting for user %d: version conflict retries exhausted", userID)
}

// Summary describes a user's current usage against their plan quota.
type Summary struct {
	MonthlyUsageMinutes int64
	TotalUsageMinutes   int64
	UsageBytes          int64
	QuotaMinutes        int64
	QuotaExceeded       bool
}

// Summarize answers the quota question without mutating anything. Users
// without a usage row report zero usage.
func (l *Ledger) Summarize(ctx context.Context, userID uint) (*Summary, error) {
	quota, err := l.quotaFor(userID)
	if err != nil {
		return nil, err
	}

	rec, err := l.repo.GetUsageRecord(userID)
	if err != nil {
		return nil, err
	}
	s := &Summary{QuotaMinutes: quota}
	if rec == nil {
		return s, nil
	}

	monthly := rec.MonthlyUsageMinutes
	if !rec.SameResetMonth(l.now()) {
		// The stored counter is from a previous month; it reads as zero
		// until the next increment performs the actual reset.
		monthly = 0
	}
	s.MonthlyUsageMinutes = monthly
	s.TotalUsageMinutes = rec.TotalUsageMinutes
	s.UsageBytes = rec.UsageBytes
	s.QuotaExceeded = monthly > quota
	return s, nil
}

func (l *Ledger) quotaFor(userID uint) (int64, error) {
	plan := entitlements.PlanFree
	if l.plans != nil {
		rec, err := l.plans.GetBillingRecordByUser(userID)
		if err != nil {
			return 0, err
		}
		if rec != nil {
			plan = entitlements.NormalizePlan(rec.EffectivePlanType())
		}
	}
	return entitlements.MonthlyMinuteQuota(plan), nil
}

// CeilMinutes converts seconds to whole minutes, rounding up. Partial
// minutes always count as a full minute.
func CeilMinutes(seconds int64) int64 {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 59) / 60
}
