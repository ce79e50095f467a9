package merge

import "github.com/okian/rankcrawl/pkg/logger"

// Option applies a configuration option to the Merger.
type Option func(*Merger)

// WithBootstrap allows the roster to be built from the ranked ladder alone
// when no roster snapshot exists.
func WithBootstrap(enabled bool) Option {
	return func(m *Merger) {
		m.bootstrap = enabled
	}
}

// WithRankWindow sets the window of the rank-ordered roster write.
func WithRankWindow(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.window = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Merger) {
		if l != nil {
			m.log = l
		}
	}
}
