package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/echoscribehq/echoscribe/app/controllers"
	"github.com/echoscribehq/echoscribe/internal/pkg/constants"
	"github.com/echoscribehq/echoscribe/internal/pkg/metrics/counter"
)

type ApiRouter struct {
	upload *controllers.APIUploadController
	usage  *controllers.APIUsageController
}

func NewApiRouter(upload *controllers.APIUploadController, usage *controllers.APIUsageController) *ApiRouter {
	return &ApiRouter{upload: upload, usage: usage}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Post("/users/:id/uploads", h.upload.HandleUpload)
	v1.Get("/users/:id/usage", h.usage.HandleGetUsage)
	v1.Get("/stats/webhooks", handleWebhookStats)
}

func handleWebhookStats(ctx *fiber.Ctx) error {
	stats, err := counter.GetWebhookStats()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats unavailable"})
	}
	return ctx.Status(fiber.StatusOK).JSON(stats)
}
