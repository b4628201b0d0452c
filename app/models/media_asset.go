package models

import "time"

// Media asset processing states. Status only ever advances through this
// set; a completed or failed asset never moves back to pending.
const (
	AssetStatusPending    = "pending"
	AssetStatusProcessing = "processing"
	AssetStatusCompleted  = "completed"
	AssetStatusFailed     = "failed"
	AssetStatusError      = "error"
)

// MediaAsset is an uploaded audio/video file awaiting or finished with
// transcription processing. DurationSeconds is written exactly once by the
// duration estimator before the usage ledger is charged.
type MediaAsset struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UUID            string    `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	FileName        string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FilePath        string    `gorm:"type:varchar(255);not null" json:"file_path"`
	FileSizeBytes   int64     `gorm:"type:bigint;not null;default:0" json:"file_size_bytes"`
	FileType        string    `gorm:"type:varchar(50)" json:"file_type"`
	DurationSeconds int64     `gorm:"not null;default:0" json:"duration_seconds"`
	Status          string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	UsageRecorded   bool      `gorm:"default:false" json:"usage_recorded"`
	ArchivedToS3    bool      `gorm:"default:false" json:"archived_to_s3"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var assetStatusRank = map[string]int{
	AssetStatusPending:    0,
	AssetStatusProcessing: 1,
	AssetStatusCompleted:  2,
	AssetStatusFailed:     2,
	AssetStatusError:      2,
}

// CanTransitionTo reports whether moving the asset to next would keep the
// status progression monotonic.
func (m *MediaAsset) CanTransitionTo(next string) bool {
	cur, ok := assetStatusRank[m.Status]
	if !ok {
		return false
	}
	nxt, ok := assetStatusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}
