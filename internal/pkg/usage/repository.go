package usage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/echoscribehq/echoscribe/app/models"
)

// Repository provides the read-modify-write primitives the ledger is built
// on. Updates are conditional on the record's version so concurrent
// increments for the same user serialize without locks.
type Repository interface {
	GetUsageRecord(userID uint) (*models.UsageRecord, error)
	GetOrCreateUsageRecord(userID uint, now time.Time) (*models.UsageRecord, error)
	// UpdateUsageIfVersion applies rec's counters only if the stored version
	// still equals expectedVersion. Returns false on conflict.
	UpdateUsageIfVersion(rec *models.UsageRecord, expectedVersion int64) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a usage repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUsageRecord(userID uint) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	err := r.db.Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) GetOrCreateUsageRecord(userID uint, now time.Time) (*models.UsageRecord, error) {
	rec, err := r.GetUsageRecord(userID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	rec = &models.UsageRecord{
		UserID:        userID,
		LastResetDate: now,
	}
	err = r.db.Create(rec).Error
	if err == nil {
		return rec, nil
	}
	// A concurrent increment created the row first; read theirs.
	if existing, readErr := r.GetUsageRecord(userID); readErr == nil && existing != nil {
		return existing, nil
	}
	return nil, err
}

func (r *gormRepository) UpdateUsageIfVersion(rec *models.UsageRecord, expectedVersion int64) (bool, error) {
	tx := r.db.Model(&models.UsageRecord{}).
		Where("user_id = ? AND version = ?", rec.UserID, expectedVersion).
		Updates(map[string]interface{}{
			"total_usage_minutes":   rec.TotalUsageMinutes,
			"monthly_usage_minutes": rec.MonthlyUsageMinutes,
			"last_reset_date":       rec.LastResetDate,
			"usage_bytes":           rec.UsageBytes,
			"version":               rec.Version,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
