package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/echoscribehq/echoscribe/app/models"
)

// Repository provides DB operations used by the dispatcher and the
// subscription state handler. Lookup methods return (nil, nil) when no row
// exists so callers stay free of driver error sentinels.
type Repository interface {
	GetProcessedEvent(providerEventID string) (*models.WebhookEvent, error)
	RecordProcessedEvent(event *models.WebhookEvent) error
	GetBillingRecordByUser(userID uint) (*models.BillingRecord, error)
	GetBillingRecordByCustomer(customerID string) (*models.BillingRecord, error)
	CreateBillingRecord(rec *models.BillingRecord) error
	// UpdateBillingRecordIfUnchanged applies rec's mutable fields only if the
	// stored last_event_at still equals prevLastEventAt. Returns false when
	// another writer got there first.
	UpdateBillingRecordIfUnchanged(rec *models.BillingRecord, prevLastEventAt *time.Time) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetProcessedEvent(providerEventID string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := r.db.Where("provider_event_id = ?", providerEventID).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) RecordProcessedEvent(event *models.WebhookEvent) error {
	// Concurrent deliveries of the same event may race to this insert; the
	// unique index plus DoNothing makes the loser a harmless no-op.
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event).Error
}

func (r *gormRepository) GetBillingRecordByUser(userID uint) (*models.BillingRecord, error) {
	var rec models.BillingRecord
	err := r.db.Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) GetBillingRecordByCustomer(customerID string) (*models.BillingRecord, error) {
	var rec models.BillingRecord
	err := r.db.Where("customer_id = ?", customerID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) CreateBillingRecord(rec *models.BillingRecord) error {
	return r.db.Create(rec).Error
}

func (r *gormRepository) UpdateBillingRecordIfUnchanged(rec *models.BillingRecord, prevLastEventAt *time.Time) (bool, error) {
	q := r.db.Model(&models.BillingRecord{}).Where("user_id = ?", rec.UserID)
	if prevLastEventAt == nil {
		q = q.Where("last_event_at IS NULL")
	} else {
		q = q.Where("last_event_at = ?", *prevLastEventAt)
	}

	tx := q.Updates(map[string]interface{}{
		"plan_type":     rec.PlanType,
		"plan_id":       rec.PlanID,
		"customer_id":   rec.CustomerID,
		"status":        rec.Status,
		"last_event_at": rec.LastEventAt,
	})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
