package service

import (
	"time"

	"github.com/okian/rankcrawl/internal/crawl"
	"github.com/okian/rankcrawl/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithUpdateSize sets how many of the least recently updated players are
// refreshed per cycle.
func WithUpdateSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.updateSize = n
		}
	}
}

// WithPullRanks makes each cycle paginate the ranked ladder instead of
// reusing the tiers stored in the roster.
func WithPullRanks(enabled bool) Option {
	return func(s *Service) {
		s.pullRanks = enabled
	}
}

// WithBootstrap allows a cycle to start without a roster snapshot.
func WithBootstrap(enabled bool) Option {
	return func(s *Service) {
		s.bootstrap = enabled
	}
}

// WithQueueSize sets the capacity of the match detail queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithConsumerCount sets the number of match detail consumers.
func WithConsumerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.consumerCount = count
		}
	}
}

// WithCrawlOptions passes options through to the fetch orchestrator.
func WithCrawlOptions(opts ...crawl.Option) Option {
	return func(s *Service) {
		s.crawlOpts = append(s.crawlOpts, opts...)
	}
}

// WithClock sets the clock used to time cycles.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
