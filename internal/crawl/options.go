package crawl

import (
	"time"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
)

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithPaginationBatch sets how many ladder pages are requested together.
func WithPaginationBatch(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageBatch = n
		}
	}
}

// WithAccountBatch sets how many account ids are resolved together.
func WithAccountBatch(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.accountBatch = n
		}
	}
}

// WithMatchlistBatch sets how many match histories are requested together.
func WithMatchlistBatch(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.matchlistBatch = n
		}
	}
}

// WithMatchBatch sets how many match details are requested together.
func WithMatchBatch(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.matchBatch = n
		}
	}
}

// WithLookbehind sets the discovery horizon.
func WithLookbehind(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.lookbehind = d
		}
	}
}

// WithClock sets the clock used for the horizon and update timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBrackets limits ladder pagination to the given brackets.
func WithBrackets(b []model.Bracket) Option {
	return func(o *Orchestrator) {
		if len(b) > 0 {
			o.brackets = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}
