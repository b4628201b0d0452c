package models

import "time"

// Subscription lifecycle states as reported by the payment provider.
const (
	BillingStatusNone     = "none"
	BillingStatusActive   = "active"
	BillingStatusPastDue  = "past_due"
	BillingStatusCanceled = "canceled"
)

// Internal plan types derived from the provider plan reference.
const (
	PlanTypeFree = "free"
	PlanTypePro  = "pro"
)

// BillingRecord mirrors a user's subscription state at the payment provider.
// One row per user; only the subscription state handler mutates it. An event
// whose timestamp is not strictly newer than LastEventAt must never change
// the row.
type BillingRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanType    string     `gorm:"type:varchar(20);not null;default:'free';index" json:"plan_type"`
	PlanID      string     `gorm:"type:varchar(191);default:''" json:"plan_id"`
	CustomerID  string     `gorm:"type:varchar(191);default:'';index" json:"customer_id"`
	Status      string     `gorm:"type:varchar(32);not null;default:'none';index" json:"status"`
	LastEventAt *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the stored status still grants paid features.
// past_due keeps entitlements until the provider gives up and cancels.
func (b *BillingRecord) IsEntitling() bool {
	switch b.Status {
	case BillingStatusActive, BillingStatusPastDue:
		return true
	default:
		return false
	}
}

// EffectivePlanType returns the plan that entitlements should be computed
// from: the stored plan while entitling, free otherwise.
func (b *BillingRecord) EffectivePlanType() string {
	if b.IsEntitling() {
		return b.PlanType
	}
	return PlanTypeFree
}
