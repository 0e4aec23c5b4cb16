package config

import (
	"time"

	"guild_ledger/internal/retry"
)

type ResilienceConfig struct {
	// SheetWrite governs batched ledger writes: 1s, 2s, 4s, 8s, 16s then give up.
	SheetWrite retry.Config
	SheetRead  retry.Config
	APIRequest retry.Config
	Notify     retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetWrite: retry.Config{
		MaxRetries: 5,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
		Jitter:     true,
	},
	APIRequest: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    10 * time.Second,
		Jitter:     true,
	},
	Notify: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    10 * time.Second,
		Jitter:     true,
	},
}
