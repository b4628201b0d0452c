package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/echoscribehq/echoscribe/app/models"
	"github.com/echoscribehq/echoscribe/internal/pkg/billing"
	"github.com/echoscribehq/echoscribe/internal/pkg/constants"
)

const testWebhookSecret = "whsec_controller_test"

func newControllerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// The in-memory database lives per connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.BillingRecord{}, &models.WebhookEvent{}))
	return db
}

func newWebhookTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	repo := billing.NewRepository(db)
	dispatcher := billing.NewDispatcher(repo)
	sub := billing.NewSubscriptionHandler(repo)
	dispatcher.Register(billing.EventSubscriptionCreated, sub.HandleEvent)
	dispatcher.Register(billing.EventSubscriptionUpdated, sub.HandleEvent)
	dispatcher.Register(billing.EventSubscriptionCanceled, sub.HandleEvent)

	cfg := &billing.Config{WebhookSecret: testWebhookSecret, Tolerance: billing.DefaultTolerance}
	wc := NewWebhookController(dispatcher, cfg)

	app := fiber.New()
	app.Post(constants.PaymentWebhookRoute, wc.HandlePaymentWebhook)
	return app
}

func subscriptionBody(t *testing.T, eventID, eventType string, created time.Time, userID uint, planID, status string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"id":      eventID,
		"type":    eventType,
		"created": created.Unix(),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"user_id":     userID,
				"customer_id": fmt.Sprintf("cus_%d", userID),
				"plan_id":     planID,
				"status":      status,
			},
		},
	})
	require.NoError(t, err)
	return body
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, sigHeader string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPost, constants.PaymentWebhookRoute, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sigHeader != "" {
		req.Header.Set(constants.PaymentSignatureHeader, sigHeader)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp.StatusCode, decoded
}

func signatureHeaderFor(body []byte, ts time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), billing.ComputeSignature(body, testWebhookSecret, ts.Unix()))
}

func TestWebhookEndpoint_AcceptsSignedEvent(t *testing.T) {
	db := newControllerTestDB(t)
	app := newWebhookTestApp(t, db)

	now := time.Now()
	body := subscriptionBody(t, "evt_1", "subscription.created", now, 7, "pro-month", "active")

	status, resp := postWebhook(t, app, body, signatureHeaderFor(body, now))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "subscription.created", resp["event"])

	var rec models.BillingRecord
	require.NoError(t, db.Where("user_id = ?", 7).First(&rec).Error)
	assert.Equal(t, models.BillingStatusActive, rec.Status)
	assert.Equal(t, models.PlanTypePro, rec.PlanType)
}

func TestWebhookEndpoint_MissingSignature(t *testing.T) {
	db := newControllerTestDB(t)
	app := newWebhookTestApp(t, db)

	body := subscriptionBody(t, "evt_2", "subscription.created", time.Now(), 7, "pro-month", "active")

	status, resp := postWebhook(t, app, body, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "missing signature", resp["error"])
}

func TestWebhookEndpoint_ForgedSignature(t *testing.T) {
	db := newControllerTestDB(t)
	app := newWebhookTestApp(t, db)

	now := time.Now()
	body := subscriptionBody(t, "evt_3", "subscription.created", now, 7, "pro-month", "active")
	forged := fmt.Sprintf("t=%d,v1=%064x", now.Unix(), 0)

	status, resp := postWebhook(t, app, body, forged)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid signature", resp["error"])

	// Nothing may be recorded for a forged delivery.
	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookEndpoint_StaleTimestamp(t *testing.T) {
	db := newControllerTestDB(t)
	app := newWebhookTestApp(t, db)

	stale := time.Now().Add(-10 * time.Minute)
	body := subscriptionBody(t, "evt_4", "subscription.created", stale, 7, "pro-month", "active")

	status, resp := postWebhook(t, app, body, signatureHeaderFor(body, stale))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "timestamp outside tolerance", resp["error"])
}

func TestWebhookEndpoint_MalformedPayload(t *testing.T) {
	db := newControllerTestDB(t)
	app := newWebhookTestApp(t, db)

	now := time.Now()
	body := []byte(`{"not":"an event"}`)

	status, resp := postWebhook(t, app, body, signatureHeaderFor(body, now))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "malformed payload", resp["error"])
}

func TestWebhookEndpoint_UnknownEventAcknowledged(t *testing.T) {
	db := newControllerTestDB(t)
	app := newWebhookTestApp(t, db)

	now := time.Now()
	body := subscriptionBody(t, "evt_5", "invoice.finalized", now, 7, "pro-month", "active")

	status, resp := postWebhook(t, app, body, signatureHeaderFor(body, now))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "unknown", resp["event"])
}

func TestWebhookEndpoint_DuplicateDelivery(t *testing.T) {
	db := newControllerTestDB(t)
	app := newWebhookTestApp(t, db)

	now := time.Now()
	body := subscriptionBody(t, "evt_6", "subscription.created", now, 9, "pro-month", "active")
	header := signatureHeaderFor(body, now)

	status, _ := postWebhook(t, app, body, header)
	require.Equal(t, fiber.StatusOK, status)

	status, resp := postWebhook(t, app, body, header)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "subscription.created", resp["event"])

	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhookEndpoint_HandlerFailureReturns500(t *testing.T) {
	db := newControllerTestDB(t)

	repo := billing.NewRepository(db)
	dispatcher := billing.NewDispatcher(repo)
	dispatcher.Register(billing.EventSubscriptionCreated, func(ctx context.Context, ev *billing.Event) error {
		return errors.New("downstream unavailable")
	})

	cfg := &billing.Config{WebhookSecret: testWebhookSecret, Tolerance: billing.DefaultTolerance}
	app := fiber.New()
	app.Post(constants.PaymentWebhookRoute, NewWebhookController(dispatcher, cfg).HandlePaymentWebhook)

	now := time.Now()
	body := subscriptionBody(t, "evt_7", "subscription.created", now, 7, "pro-month", "active")

	status, resp := postWebhook(t, app, body, signatureHeaderFor(body, now))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "event processing failed", resp["error"])

	// A failed delivery is not recorded, so the provider's retry can succeed.
	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}
