package models

import "time"

// UsageRecord is the per-user transcription usage ledger row. Monthly and
// total counters only ever grow within a month; the monthly counter resets
// lazily when an increment crosses a calendar-month boundary. Version drives
// the optimistic conditional write that serializes concurrent increments for
// the same user.
//
// Invariant: MonthlyUsageMinutes <= TotalUsageMinutes.
type UsageRecord struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalUsageMinutes   int64     `gorm:"not null;default:0" json:"total_usage_minutes"`
	MonthlyUsageMinutes int64     `gorm:"not null;default:0" json:"monthly_usage_minutes"`
	LastResetDate       time.Time `gorm:"type:timestamp;not null" json:"last_reset_date"`
	UsageBytes          int64     `gorm:"not null;default:0" json:"usage_bytes"`
	Version             int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SameResetMonth reports whether t falls in the same calendar month as the
// record's last reset.
func (u *UsageRecord) SameResetMonth(t time.Time) bool {
	return u.LastResetDate.Year() == t.Year() && u.LastResetDate.Month() == t.Month()
}
