package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/echoscribehq/echoscribe/app/models"
	"github.com/echoscribehq/echoscribe/internal/pkg/mediaprobe"
	"github.com/echoscribehq/echoscribe/internal/pkg/usage"
)

// MediaProcessor handles media_processing jobs: it estimates the duration of
// an uploaded asset, charges the usage ledger exactly once and optionally
// hands the file to the S3 archive queue.
type MediaProcessor struct {
	db             *gorm.DB
	ledger         *usage.Ledger
	queue          *Queue
	archiveEnabled bool
}

// NewMediaProcessor creates a media processor bound to the given database,
// ledger and queue.
func NewMediaProcessor(db *gorm.DB, ledger *usage.Ledger, queue *Queue, archiveEnabled bool) *MediaProcessor {
	return &MediaProcessor{
		db:             db,
		ledger:         ledger,
		queue:          queue,
		archiveEnabled: archiveEnabled,
	}
}

// Process runs one media processing job. The job is safe to redeliver: the
// status progression is monotonic and the ledger charge is guarded by the
// asset's UsageRecorded flag.
func (p *MediaProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := MediaProcessingJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse media processing job payload: %w", err)
	}

	log.Infof("[MediaProcessor] Processing asset %s (ID: %d)", payload.AssetUUID, payload.AssetID)

	var asset models.MediaAsset
	if err := p.db.WithContext(ctx).First(&asset, payload.AssetID).Error; err != nil {
		return fmt.Errorf("failed to find media asset %d: %w", payload.AssetID, err)
	}

	// A redelivered job for an already finished asset is a no-op.
	if asset.Status == models.AssetStatusCompleted {
		log.Infof("[MediaProcessor] Asset %s already completed, skipping", asset.UUID)
		return nil
	}

	if asset.CanTransitionTo(models.AssetStatusProcessing) {
		if err := p.db.WithContext(ctx).Model(&asset).Update("status", models.AssetStatusProcessing).Error; err != nil {
			return fmt.Errorf("failed to mark asset as processing: %w", err)
		}
	}

	// Duration is written exactly once, before the ledger is charged.
	if asset.DurationSeconds == 0 {
		seconds := mediaprobe.EstimateDurationSeconds(asset.FilePath, asset.FileSizeBytes)
		if err := p.db.WithContext(ctx).Model(&asset).Update("duration_seconds", seconds).Error; err != nil {
			return fmt.Errorf("failed to store asset duration: %w", err)
		}
		asset.DurationSeconds = seconds
	}

	if !asset.UsageRecorded {
		result, err := p.ledger.Increment(ctx, asset.UserID, asset.DurationSeconds)
		if err != nil {
			return fmt.Errorf("failed to charge usage ledger: %w", err)
		}
		if err := p.ledger.AddUploadBytes(ctx, asset.UserID, asset.FileSizeBytes); err != nil {
			return fmt.Errorf("failed to record upload bytes: %w", err)
		}
		if err := p.db.WithContext(ctx).Model(&asset).Update("usage_recorded", true).Error; err != nil {
			return fmt.Errorf("failed to mark usage as recorded: %w", err)
		}
		if result.QuotaExceeded {
			log.Warnf("[MediaProcessor] User %d exceeded monthly quota (%d/%d minutes)",
				asset.UserID, result.MonthlyUsageMinutes, result.QuotaMinutes)
		}
	}

	if err := p.db.WithContext(ctx).Model(&asset).Update("status", models.AssetStatusCompleted).Error; err != nil {
		return fmt.Errorf("failed to mark asset as completed: %w", err)
	}

	if p.archiveEnabled && !asset.ArchivedToS3 {
		archivePayload := S3ArchiveJobPayload{
			AssetID:   asset.ID,
			AssetUUID: asset.UUID,
			FilePath:  asset.FilePath,
			FileName:  asset.FileName,
		}
		if _, err := p.queue.EnqueueJob(JobTypeS3Archive, archivePayload.ToMap()); err != nil {
			// Archival is best-effort; the asset itself is done.
			log.Errorf("[MediaProcessor] Failed to enqueue archive job for asset %s: %v", asset.UUID, err)
		}
	}

	log.Infof("[MediaProcessor] Completed asset %s (%ds, user %d)", asset.UUID, asset.DurationSeconds, asset.UserID)
	return nil
}

// HandleFailure implements FailureFunc: once a processing job has exhausted
// its retries the asset is moved to failed so it does not sit at processing
// forever. Assets that already reached a terminal state are left alone.
func (p *MediaProcessor) HandleFailure(ctx context.Context, job *Job) {
	payload, err := MediaProcessingJobPayloadFromMap(job.Payload)
	if err != nil {
		log.Errorf("[MediaProcessor] Failed to parse payload of failed job %s: %v", job.ID, err)
		return
	}

	var asset models.MediaAsset
	if err := p.db.WithContext(ctx).First(&asset, payload.AssetID).Error; err != nil {
		log.Errorf("[MediaProcessor] Failed to load asset %d for failed job %s: %v", payload.AssetID, job.ID, err)
		return
	}

	if !asset.CanTransitionTo(models.AssetStatusFailed) {
		return
	}
	if err := p.db.WithContext(ctx).Model(&asset).Update("status", models.AssetStatusFailed).Error; err != nil {
		log.Errorf("[MediaProcessor] Failed to mark asset %s as failed: %v", asset.UUID, err)
		return
	}
	log.Warnf("[MediaProcessor] Asset %s marked as failed after job %s exhausted retries", asset.UUID, job.ID)
}

// EnqueueMediaProcessingJob creates and enqueues a media processing job for
// an uploaded asset.
func (q *Queue) EnqueueMediaProcessingJob(asset *models.MediaAsset) (*Job, error) {
	payload := MediaProcessingJobPayload{
		AssetID:       asset.ID,
		AssetUUID:     asset.UUID,
		UserID:        asset.UserID,
		FilePath:      asset.FilePath,
		FileSizeBytes: asset.FileSizeBytes,
	}

	return q.EnqueueJob(JobTypeMediaProcessing, payload.ToMap())
}
