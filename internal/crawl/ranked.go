package crawl

import (
	"context"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
	"github.com/okian/rankcrawl/pkg/metrics"
)

// FetchRanked paginates every ladder bracket (Stage A) and returns the
// entries keyed by player id. Pages are requested pageBatch at a time; a
// bracket ends when a whole batch returns no entries. A failed page counts
// as empty. Only cancellation of ctx is returned as an error.
func (o *Orchestrator) FetchRanked(ctx context.Context) (map[string]model.LadderEntry, error) {
	ranked := make(map[string]model.LadderEntry)
	for _, b := range o.brackets {
		n, err := o.fetchBracket(ctx, b, ranked)
		if err != nil {
			return nil, err
		}
		o.log.Info(ctx, "bracket paginated",
			logger.String("tier", string(b.Tier)), logger.String("division", string(b.Division)), logger.Int("entries", n))
	}
	return ranked, nil
}

func (o *Orchestrator) fetchBracket(ctx context.Context, b model.Bracket, into map[string]model.LadderEntry) (int, error) {
	total := 0
	pages := make([]int, o.pageBatch)
	for first := 1; ; first += o.pageBatch {
		for i := range pages {
			pages[i] = first + i
		}
		results := make([][]model.LadderEntry, len(pages))
		err := inBatches(ctx, pages, o.pageBatch, func(ctx context.Context, i, page int) {
			entries, err := o.client.LeagueEntries(ctx, b.Tier, b.Division, page)
			if err != nil {
				o.log.Warn(ctx, "ladder page failed",
					logger.String("tier", string(b.Tier)), logger.String("division", string(b.Division)),
					logger.Int("page", page), logger.Error(err))
				return
			}
			results[i] = entries
		})
		if err != nil {
			return total, err
		}

		batchEntries := 0
		for _, entries := range results {
			batchEntries += len(entries)
			for _, e := range entries {
				if e.PlayerID == "" {
					continue
				}
				if e.Tier == model.TierUnknown {
					e.Tier = b.Tier
				}
				into[e.PlayerID] = e
			}
		}
		metrics.RecordLadderEntries(batchEntries)
		total += batchEntries
		if batchEntries == 0 {
			return total, nil
		}
	}
}
