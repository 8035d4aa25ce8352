package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// StorefrontConfig holds the transactional API client configuration.
//
// The storefront API is the external system of record for products,
// customers, orders, addresses, and gift cards. kiosk only ever reaches it
// through these settings.
type StorefrontConfig struct {
	// BaseURL is the transactional API root (e.g. http://store:3000/api)
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// APIToken authenticates kiosk against the storefront API
	APIToken string `mapstructure:"api_token" json:"api_token" sensitive:"true"`
	// TimeoutMs is the per-request timeout in milliseconds (default: 10000)
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
	// RatePerSec caps outbound requests per second (default: 8)
	RatePerSec float64 `mapstructure:"rate_per_sec" json:"rate_per_sec"`
	// Burst is the rate limiter burst size (default: 16)
	Burst int `mapstructure:"burst" json:"burst"`
	// MaxRetries bounds retries for idempotent reads (default: 2).
	// Mutating operations are never retried regardless of this value.
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`
}

// Timeout returns the per-request timeout as a time.Duration.
func (s StorefrontConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (s StorefrontConfig) MarshalJSON() ([]byte, error) {
	type alias StorefrontConfig
	a := alias(s)
	a.APIToken = maskSecret(a.APIToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal storefront config: %w", err)
	}
	return data, nil
}
