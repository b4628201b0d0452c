package models

import "time"

// Webhook processing outcomes recorded in the dedup log.
const (
	WebhookOutcomeSuccess = "success"
	WebhookOutcomeIgnored = "ignored"
)

// WebhookEvent stores provider webhook payloads with deduplication metadata
// for idempotent processing. Rows are append-only: a row with a success or
// ignored outcome means the event's side effects have been applied and a
// redelivery must short-circuit. Failed attempts leave no row so the
// provider's retry re-attempts the handler.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	Outcome         string     `gorm:"type:varchar(32);not null;default:''" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
