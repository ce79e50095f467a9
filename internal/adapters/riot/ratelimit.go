package riot

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/okian/rankcrawl/internal/domain/model"
)

// rateLimitedAPI wraps an API and blocks each call until the limiter admits it.
type rateLimitedAPI struct {
	next    API
	limiter *rate.Limiter
}

// NewRateLimited returns an API that issues at most rps calls per second with
// the given burst. A non-positive rps disables limiting.
func NewRateLimited(next API, rps float64, burst int) API {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedAPI{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *rateLimitedAPI) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return nil
}

func (p *rateLimitedAPI) LeagueEntries(ctx context.Context, tier model.Tier, division model.Division, page int) ([]model.LadderEntry, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.LeagueEntries(ctx, tier, division, page)
}

func (p *rateLimitedAPI) AccountID(ctx context.Context, playerID string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.AccountID(ctx, playerID)
}

func (p *rateLimitedAPI) MatchList(ctx context.Context, accountID string, since int64) ([]model.MatchRef, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.MatchList(ctx, accountID, since)
}

func (p *rateLimitedAPI) Match(ctx context.Context, matchID int64) (model.MatchDetail, error) {
	if err := p.wait(ctx); err != nil {
		return model.MatchDetail{}, err
	}
	return p.next.Match(ctx, matchID)
}
