package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/echoscribehq/echoscribe/app/controllers"
	"github.com/echoscribehq/echoscribe/internal/pkg/constants"
)

// WebhookRouter exposes the payment provider callback. The route takes the
// raw body; no body-parsing middleware may run ahead of it, signature
// verification needs the exact bytes the provider signed.
type WebhookRouter struct {
	webhook *controllers.WebhookController
}

func NewWebhookRouter(webhook *controllers.WebhookController) *WebhookRouter {
	return &WebhookRouter{webhook: webhook}
}

func (h *WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post(constants.PaymentWebhookRoute, h.webhook.HandlePaymentWebhook)
}
