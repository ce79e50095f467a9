package riot

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// retryable reports whether a failed call is worth repeating. Not-found is a
// definitive answer and a cancelled context will not recover.
func retryable(err error) bool {
	return !isNotFound(err) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// retryingAPI wraps an API with exponential backoff.
type retryingAPI struct {
	inner    API
	log      logger.Logger
	attempts uint
	delay    time.Duration
}

// NewRetrying wraps inner with retries. If attempts/delay are <= 0, defaults are used.
func NewRetrying(inner API, log logger.Logger, attempts int, delay time.Duration) API {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &retryingAPI{inner: inner, log: log, attempts: uint(attempts), delay: delay}
}

func (r *retryingAPI) do(ctx context.Context, call string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			r.log.Debug(ctx, "remote call retry",
				logger.String("call", call), logger.Int("attempt", int(n)+1), logger.Error(err))
		}),
	)
}

func (r *retryingAPI) LeagueEntries(ctx context.Context, tier model.Tier, division model.Division, page int) ([]model.LadderEntry, error) {
	var out []model.LadderEntry
	err := r.do(ctx, "league_entries", func() error {
		var err error
		out, err = r.inner.LeagueEntries(ctx, tier, division, page)
		return err
	})
	return out, err
}

func (r *retryingAPI) AccountID(ctx context.Context, playerID string) (string, error) {
	var out string
	err := r.do(ctx, "summoner", func() error {
		var err error
		out, err = r.inner.AccountID(ctx, playerID)
		return err
	})
	return out, err
}

func (r *retryingAPI) MatchList(ctx context.Context, accountID string, since int64) ([]model.MatchRef, error) {
	var out []model.MatchRef
	err := r.do(ctx, "match_list", func() error {
		var err error
		out, err = r.inner.MatchList(ctx, accountID, since)
		return err
	})
	return out, err
}

func (r *retryingAPI) Match(ctx context.Context, matchID int64) (model.MatchDetail, error) {
	var out model.MatchDetail
	err := r.do(ctx, "match", func() error {
		var err error
		out, err = r.inner.Match(ctx, matchID)
		return err
	})
	return out, err
}
