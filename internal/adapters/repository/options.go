package repository

import (
	"time"

	"github.com/okian/rankcrawl/pkg/logger"
)

// Option applies a configuration option to the FS store.
type Option func(*FS)

// WithClock sets the clock used to stamp snapshot file names.
func WithClock(now func() time.Time) Option {
	return func(s *FS) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FS) {
		if l != nil {
			s.log = l
		}
	}
}
