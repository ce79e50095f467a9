// Package config defines crawler configuration and its defaults.
//
// Conventions:
// - Keys are flat snake_case, matching the koanf tags below.
// - New() returns defaults; Load(ctx) layers a YAML file and env vars on top.
// - The storage location is always explicit (data_dir); nothing derives it from the region.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration for one crawl cycle.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Region selects the platform host of the remote ladder API, e.g. "na1".
	Region string `koanf:"region"`

	// DataDir is the directory holding roster, league, index and match files.
	DataDir string `koanf:"data_dir"`

	// UpdateSize is how many of the oldest-updated players are refreshed per cycle.
	UpdateSize int `koanf:"update_size"`

	// PullRanks refreshes the ranked roster from the remote ladder; when false
	// the last stored roster is reused as-is.
	PullRanks bool `koanf:"pull_ranks"`

	// Bootstrap allows a cycle to start with no roster snapshot on disk.
	Bootstrap bool `koanf:"bootstrap"`

	// LookbehindHours bounds how far back match discovery looks.
	LookbehindHours int `koanf:"lookbehind_hours"`

	// Batch sizes for the bounded-concurrency fetch stages.
	PaginationBatchSize int `koanf:"pagination_batch_size"`
	AccountBatchSize    int `koanf:"account_batch_size"`
	MatchlistBatchSize  int `koanf:"matchlist_batch_size"`
	MatchBatchSize      int `koanf:"match_batch_size"`

	// QueueSize bounds the match detail queue between fetch and consumers.
	QueueSize int `koanf:"queue_size"`

	// ConsumerCount sets the number of match consumers.
	ConsumerCount int `koanf:"consumer_count"`

	// QueueType is the ranked ladder paginated in stage A.
	QueueType string `koanf:"queue_type"`

	// QueueID filters match histories to one ranked queue.
	QueueID int `koanf:"queue_id"`

	// Remote API access.
	APIKey            string  `koanf:"api_key"`
	APIBaseURL        string  `koanf:"api_base_url"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	RequestBurst      int     `koanf:"request_burst"`
	RetryAttempts     int     `koanf:"retry_attempts"`
	RetryDelayMS      int     `koanf:"retry_delay_ms"`
	HTTPTimeoutMS     int     `koanf:"http_timeout_ms"`

	// MetricsAddr, when set, serves /metrics for the duration of the cycle.
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Region:              "na1",
		DataDir:             "data/na1",
		UpdateSize:          100,
		PullRanks:           false,
		Bootstrap:           false,
		LookbehindHours:     72,
		PaginationBatchSize: 10,
		AccountBatchSize:    20,
		MatchlistBatchSize:  20,
		MatchBatchSize:      20,
		QueueSize:           10_000,
		ConsumerCount:       4,
		QueueType:           "RANKED_SOLO_5x5",
		QueueID:             420,
		RequestsPerSecond:   15,
		RequestBurst:        20,
		RetryAttempts:       3,
		RetryDelayMS:        500,
		HTTPTimeoutMS:       10_000,
	}
}

// Lookbehind returns the discovery horizon as a duration.
func (c *Config) Lookbehind() time.Duration {
	return time.Duration(c.LookbehindHours) * time.Hour
}

// RetryDelay returns the base retry delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// HTTPTimeout returns the per-request HTTP timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Region == "":
		return fmt.Errorf("%w: region must not be empty", ErrInvalidConfig)
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.UpdateSize <= 0:
		return fmt.Errorf("%w: update_size must be positive", ErrInvalidConfig)
	case c.Bootstrap && !c.PullRanks:
		return fmt.Errorf("%w: bootstrap requires pull_ranks", ErrInvalidConfig)
	case c.PaginationBatchSize <= 0 || c.AccountBatchSize <= 0 || c.MatchlistBatchSize <= 0 || c.MatchBatchSize <= 0:
		return fmt.Errorf("%w: batch sizes must be positive", ErrInvalidConfig)
	case c.LookbehindHours <= 0:
		return fmt.Errorf("%w: lookbehind_hours must be positive", ErrInvalidConfig)
	}
	return nil
}
