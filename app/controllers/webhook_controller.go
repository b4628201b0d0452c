package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/echoscribehq/echoscribe/internal/pkg/billing"
	"github.com/echoscribehq/echoscribe/internal/pkg/constants"
	"github.com/echoscribehq/echoscribe/internal/pkg/env"
	"github.com/echoscribehq/echoscribe/internal/pkg/metrics/counter"
)

// WebhookController terminates payment provider webhook deliveries. It owns
// no state beyond its collaborators; the dispatcher and config are injected
// at startup.
type WebhookController struct {
	dispatcher *billing.Dispatcher
	config     *billing.Config
}

// NewWebhookController creates a webhook controller over the given
// dispatcher and billing configuration.
func NewWebhookController(dispatcher *billing.Dispatcher, config *billing.Config) *WebhookController {
	return &WebhookController{
		dispatcher: dispatcher,
		config:     config,
	}
}

// HandlePaymentWebhook verifies, decodes and dispatches one delivery.
// Authentication failures all surface as 400 so a forger learns nothing
// about which check failed first; transient handler failures return 500 so
// the provider redelivers.
func (wc *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := c.Body()
	sigHeader := c.Get(constants.PaymentSignatureHeader)

	ev, err := billing.VerifyAndDecode(rawBody, sigHeader, wc.config.WebhookSecret, time.Now(), wc.config.Tolerance)
	if err != nil {
		// The signature header and secret never reach the log.
		log.Warnf("[Webhook] Rejected delivery from %s: %v", c.IP(), err)
		_ = counter.AddWebhookDelivery(counter.DeliveryRejected)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": rejectionReason(err),
		})
	}

	outcome, err := wc.dispatcher.Dispatch(c.Context(), ev)
	if err != nil {
		log.Errorf("[Webhook] Processing failed for event %s: %v", ev.ID, err)
		_ = counter.AddWebhookDelivery(counter.DeliveryFailed)
		resp := fiber.Map{"error": "event processing failed"}
		if env.IsDev() {
			resp["detail"] = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}

	if outcome.Duplicate {
		log.Infof("[Webhook] Duplicate delivery for event %s acknowledged", ev.ID)
		_ = counter.AddWebhookDelivery(counter.DeliveryDuplicate)
	} else {
		_ = counter.AddWebhookDelivery(counter.DeliveryAccepted)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"event": string(outcome.Kind),
	})
}

// rejectionReason maps verification errors to stable response strings.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, billing.ErrMissingCredential):
		return "missing signature"
	case errors.Is(err, billing.ErrStalePayload):
		return "timestamp outside tolerance"
	case errors.Is(err, billing.ErrAuthentication):
		return "invalid signature"
	case errors.Is(err, billing.ErrMalformedPayload):
		return "malformed payload"
	default:
		return "rejected"
	}
}
