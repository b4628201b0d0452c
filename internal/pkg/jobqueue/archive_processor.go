package jobqueue

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/echoscribehq/echoscribe/app/models"
	"github.com/echoscribehq/echoscribe/internal/pkg/s3backup"
)

// ArchiveUploader is the part of the S3 client the archive processor needs.
type ArchiveUploader interface {
	UploadFile(localFilePath, objectKey string) (*s3backup.UploadResult, error)
}

// ArchiveProcessor handles s3_archive jobs: it copies a processed media file
// to the configured S3 bucket and flags the asset as archived.
type ArchiveProcessor struct {
	db       *gorm.DB
	config   *s3backup.Config
	uploader ArchiveUploader
}

// NewArchiveProcessor creates an archive processor over the given uploader.
func NewArchiveProcessor(db *gorm.DB, config *s3backup.Config, uploader ArchiveUploader) *ArchiveProcessor {
	return &ArchiveProcessor{
		db:       db,
		config:   config,
		uploader: uploader,
	}
}

// Process runs one archive job. Already archived assets are skipped so a
// redelivered job does not upload twice.
func (p *ArchiveProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := S3ArchiveJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse archive job payload: %w", err)
	}

	log.Infof("[S3Archive] Processing archive job for asset %s (ID: %d)", payload.AssetUUID, payload.AssetID)

	var asset models.MediaAsset
	if err := p.db.WithContext(ctx).First(&asset, payload.AssetID).Error; err != nil {
		return fmt.Errorf("failed to find media asset %d: %w", payload.AssetID, err)
	}

	if asset.ArchivedToS3 {
		log.Infof("[S3Archive] Asset %s already archived, skipping", asset.UUID)
		return nil
	}

	fileExt := filepath.Ext(payload.FileName)
	now := time.Now()
	objectKey := p.config.GetObjectKey(payload.AssetUUID, fileExt, now.Year(), int(now.Month()))

	result, err := p.uploader.UploadFile(payload.FilePath, objectKey)
	if err != nil {
		return fmt.Errorf("failed to upload asset %s to S3: %w", payload.AssetUUID, err)
	}

	if err := p.db.WithContext(ctx).Model(&asset).Update("archived_to_s3", true).Error; err != nil {
		return fmt.Errorf("failed to mark asset as archived: %w", err)
	}

	log.Infof("[S3Archive] Successfully archived asset %s to s3://%s/%s",
		payload.AssetUUID, result.BucketName, result.ObjectKey)

	return nil
}
