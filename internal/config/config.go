// Package config defines service configuration and its loading.
//
// Precedence (low -> high): defaults from New, an optional YAML file named by
// DUELBOARD_CONFIG, then DUELBOARD_* environment variables.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// UpstreamURL is the base URL of the remote report API. Empty disables polling.
	UpstreamURL string `koanf:"upstream_url" validate:"omitempty,url"`

	// PollInterval is the delay between upstream polls.
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=1s"`

	// FetchTimeout bounds one upstream request.
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"min=100ms"`

	// FetchRPS limits upstream requests per second; FetchBurst is the bucket size.
	FetchRPS   float64 `koanf:"fetch_rps" validate:"gt=0"`
	FetchBurst int     `koanf:"fetch_burst" validate:"gte=1"`

	// FetchConcurrency caps concurrent per-validator battle fetches.
	FetchConcurrency int `koanf:"fetch_concurrency" validate:"gte=1,lte=64"`

	// Validators maps validator hotkeys to display names.
	Validators map[string]string `koanf:"validators"`

	// QueueSize bounds the in-memory ingestion queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// DedupeSize bounds the batch fingerprint cache; 0 means unbounded.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// MaxStoredReports caps stored batches, oldest dropped first; 0 means unbounded.
	MaxStoredReports int `koanf:"max_stored_reports" validate:"gte=0"`

	// CacheTTL is how long an aggregation result is reused for an unchanged snapshot.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit" validate:"gte=1"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		UpstreamURL:      "",
		PollInterval:     5 * time.Minute,
		FetchTimeout:     10 * time.Second,
		FetchRPS:         2,
		FetchBurst:       4,
		FetchConcurrency: 4,
		Validators: map[string]string{
			"5GKH9FPPnWSUoeeTJp19wVtd84XqFW4pyK2ijV2GsFbhTrP1": "Taostats Validator",
		},
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      200_000,
		CacheTTL:        30 * time.Second,
		MaxRankingLimit: 256,
	}
}
