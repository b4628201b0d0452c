package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/echoscribehq/echoscribe/internal/pkg/usage"
)

// APIUsageController is a thin reader over the usage ledger.
type APIUsageController struct {
	ledger *usage.Ledger
}

// NewAPIUsageController creates a usage controller over the given ledger.
func NewAPIUsageController(ledger *usage.Ledger) *APIUsageController {
	return &APIUsageController{ledger: ledger}
}

// HandleGetUsage reports the user's current month usage against their plan
// quota. Users with no recorded usage report zeros.
func (uc *APIUsageController) HandleGetUsage(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}

	summary, err := uc.ledger.Summarize(c.Context(), userID)
	if err != nil {
		log.Errorf("[Usage] Failed to summarize usage for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage lookup failed"})
	}

	remaining := summary.QuotaMinutes - summary.MonthlyUsageMinutes
	if remaining < 0 {
		remaining = 0
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"monthly_usage_minutes": summary.MonthlyUsageMinutes,
		"total_usage_minutes":   summary.TotalUsageMinutes,
		"usage_bytes":           summary.UsageBytes,
		"quota_minutes":         summary.QuotaMinutes,
		"remaining_minutes":     remaining,
		"quota_exceeded":        summary.QuotaExceeded,
	})
}
