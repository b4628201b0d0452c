package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/echoscribehq/echoscribe/app/models"
	"github.com/echoscribehq/echoscribe/internal/pkg/constants"
	"github.com/echoscribehq/echoscribe/internal/pkg/entitlements"
	"github.com/echoscribehq/echoscribe/internal/pkg/env"
	"github.com/echoscribehq/echoscribe/internal/pkg/jobqueue"
	"github.com/echoscribehq/echoscribe/internal/pkg/metrics/counter"
	"github.com/echoscribehq/echoscribe/internal/pkg/upload"
	"github.com/echoscribehq/echoscribe/internal/pkg/usage"
)

// APIUploadController accepts media uploads and hands them to the processing
// queue. Uploads are gated on the user's remaining monthly quota before any
// bytes are stored.
type APIUploadController struct {
	db     *gorm.DB
	ledger *usage.Ledger
	plans  usage.PlanSource
	queue  *jobqueue.Queue
}

// NewAPIUploadController creates an upload controller over the given stores.
func NewAPIUploadController(db *gorm.DB, ledger *usage.Ledger, plans usage.PlanSource, queue *jobqueue.Queue) *APIUploadController {
	return &APIUploadController{
		db:     db,
		ledger: ledger,
		plans:  plans,
		queue:  queue,
	}
}

// HandleUpload stores one uploaded media file for the user in the route and
// enqueues its processing job.
func (uc *APIUploadController) HandleUpload(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}

	summary, err := uc.ledger.Summarize(c.Context(), userID)
	if err != nil {
		log.Errorf("[Upload] Failed to summarize usage for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage lookup failed"})
	}
	if summary.QuotaExceeded {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":                 "monthly transcription quota exhausted",
			"monthly_usage_minutes": summary.MonthlyUsageMinutes,
			"quota_minutes":         summary.QuotaMinutes,
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file"})
	}

	plan, err := uc.planFor(userID)
	if err != nil {
		log.Errorf("[Upload] Failed to resolve plan for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "plan lookup failed"})
	}
	if maxBytes := entitlements.MaxUploadBytes(plan); fileHeader.Size > maxBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error":     "file exceeds plan upload limit",
			"max_bytes": maxBytes,
		})
	}

	mimeType, err := sniffMediaType(fileHeader)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	assetUUID := uuid.New().String()
	uploadDir := env.GetEnv("UPLOAD_DIR", constants.UploadsPath)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Errorf("[Upload] Failed to create upload dir %s: %v", uploadDir, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage unavailable"})
	}
	savePath := filepath.Join(uploadDir, assetUUID+filepath.Ext(fileHeader.Filename))

	if err := c.SaveFile(fileHeader, savePath); err != nil {
		log.Errorf("[Upload] Failed to save file for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store file"})
	}

	asset := models.MediaAsset{
		UUID:          assetUUID,
		UserID:        userID,
		FileName:      fileHeader.Filename,
		FilePath:      savePath,
		FileSizeBytes: fileHeader.Size,
		FileType:      mimeType,
		Status:        models.AssetStatusPending,
	}
	if err := uc.db.Create(&asset).Error; err != nil {
		log.Errorf("[Upload] Failed to create asset record for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record upload"})
	}

	if _, err := uc.queue.EnqueueMediaProcessingJob(&asset); err != nil {
		log.Errorf("[Upload] Failed to enqueue processing for asset %s: %v", asset.UUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to enqueue processing"})
	}

	_ = counter.AddAcceptedUpload(userID)

	log.Infof("[Upload] Accepted asset %s for user %d (%d bytes)", asset.UUID, userID, asset.FileSizeBytes)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"uuid":   asset.UUID,
		"status": asset.Status,
	})
}

func (uc *APIUploadController) planFor(userID uint) (entitlements.Plan, error) {
	plan := entitlements.PlanFree
	if uc.plans != nil {
		rec, err := uc.plans.GetBillingRecordByUser(userID)
		if err != nil {
			return plan, err
		}
		if rec != nil {
			plan = entitlements.NormalizePlan(rec.EffectivePlanType())
		}
	}
	return plan, nil
}

// sniffMediaType reads the first bytes of the upload and validates them
// against the supported audio/video formats.
func sniffMediaType(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", errors.New("unreadable upload")
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := src.Read(head)
	if err != nil && err != io.EOF {
		return "", errors.New("unreadable upload")
	}
	return upload.ValidateMediaBySniff(fileHeader.Filename, head[:n])
}

func parseUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}
