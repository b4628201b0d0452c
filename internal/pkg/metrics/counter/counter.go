package counter

import (
	"context"
	"strconv"

	"github.com/echoscribehq/echoscribe/internal/pkg/cache"
)

const (
	webhookDeliveriesKey = "webhook:counters:deliveries"
	uploadCountersKey    = "upload:counters:accepted"
)

// Webhook delivery outcomes tracked in Redis.
const (
	DeliveryAccepted  = "accepted"
	DeliveryDuplicate = "duplicate"
	DeliveryRejected  = "rejected"
	DeliveryFailed    = "failed"
)

// AddWebhookDelivery increments the counter for one delivery outcome.
// Best-effort; callers ignore the error on the hot path.
func AddWebhookDelivery(outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookDeliveriesKey, outcome, 1).Err()
}

// AddAcceptedUpload increments the per-user accepted upload counter.
func AddAcceptedUpload(userID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(userID), 10)
	return cache.GetClient().HIncrBy(ctx, uploadCountersKey, field, 1).Err()
}

// GetWebhookStats returns the delivery counters by outcome.
func GetWebhookStats() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, webhookDeliveriesKey).Result()
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64, len(raw))
	for outcome, count := range raw {
		n, err := strconv.ParseInt(count, 10, 64)
		if err != nil {
			continue
		}
		stats[outcome] = n
	}
	return stats, nil
}
