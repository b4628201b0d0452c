package billing

import (
	"errors"
	"strconv"
	"time"

	"github.com/echoscribehq/echoscribe/internal/pkg/env"
)

// Config enumerates every recognized billing option with its default. The
// secret and API key are supplied via process configuration and must never
// appear in logs.
type Config struct {
	WebhookSecret string        // PAYMENT_WEBHOOK_SECRET (required)
	APIKey        string        // PAYMENT_API_KEY
	Tolerance     time.Duration // PAYMENT_WEBHOOK_TOLERANCE seconds, default 300
}

// LoadConfig reads billing configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		WebhookSecret: env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
		APIKey:        env.GetEnv("PAYMENT_API_KEY", ""),
		Tolerance:     DefaultTolerance,
	}

	if raw := env.GetEnv("PAYMENT_WEBHOOK_TOLERANCE", ""); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, errors.New("PAYMENT_WEBHOOK_TOLERANCE must be a positive number of seconds")
		}
		cfg.Tolerance = time.Duration(secs) * time.Second
	}

	if cfg.WebhookSecret == "" {
		return nil, errors.New("PAYMENT_WEBHOOK_SECRET is required")
	}
	return cfg, nil
}
