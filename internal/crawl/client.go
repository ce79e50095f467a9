package crawl

import (
	"context"

	"github.com/okian/rankcrawl/internal/domain/model"
)

// Client is the remote data service. Every call may fail transiently; the
// orchestrator treats a failure as an empty result and never retries itself.
type Client interface {
	// LeagueEntries returns one page of a ladder bracket; an empty page ends it.
	LeagueEntries(ctx context.Context, tier model.Tier, division model.Division, page int) ([]model.LadderEntry, error)
	// AccountID resolves a ladder player id to a durable account id.
	AccountID(ctx context.Context, playerID string) (string, error)
	// MatchList lists ranked matches of an account created at or after since (epoch millis).
	MatchList(ctx context.Context, accountID string, since int64) ([]model.MatchRef, error)
	// Match fetches one match detail.
	Match(ctx context.Context, matchID int64) (model.MatchDetail, error)
}

// Producer receives fetched match details. The orchestrator closes it after
// the last detail.
type Producer interface {
	Enqueue(ctx context.Context, d model.MatchDetail) error
	Close() error
}
