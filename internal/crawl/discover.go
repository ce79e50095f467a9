package crawl

import (
	"context"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
	"github.com/okian/rankcrawl/pkg/metrics"
)

const millisPerDay = 24 * 60 * 60 * 1000

// Discovery counts the outcomes of Stage B.
type Discovery struct {
	Resolved   int // account ids resolved this cycle
	Unresolved int // records still without an account id
	Refreshed  int // records whose match history was read
	Seen       int // match ids returned by match histories
	New        int // match ids not previously in the index
}

// ResolveAccounts fills in missing account ids, accountBatch calls at a
// time. Records that cannot be resolved keep an empty account id and are
// skipped for the rest of the cycle.
func (o *Orchestrator) ResolveAccounts(ctx context.Context, players []model.PlayerRecord) (resolved, unresolved int) {
	var pending []int
	for i := range players {
		if players[i].AccountID == "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return 0, 0
	}

	accounts := make([]string, len(pending))
	_ = inBatches(ctx, pending, o.accountBatch, func(ctx context.Context, i, idx int) {
		aid, err := o.client.AccountID(ctx, players[idx].ID)
		if err != nil {
			o.log.Debug(ctx, "account id unresolved", logger.String("player_id", players[idx].ID), logger.Error(err))
			return
		}
		accounts[i] = aid
	})

	for i, idx := range pending {
		ok := accounts[i] != ""
		if ok {
			players[idx].AccountID = accounts[i]
			resolved++
		} else {
			unresolved++
		}
		metrics.RecordAccountResolution(ok)
	}
	o.log.Info(ctx, "account ids resolved", logger.Int("resolved", resolved), logger.Int("unresolved", unresolved))
	return resolved, unresolved
}

// Discover reads the match history of every record with an account id,
// matchlistBatch calls at a time, since the later of the lookbehind horizon
// and the record's own last update. Each returned id is tested and inserted
// into the index in one step; ids not seen before are sent on out. Records
// whose history was read get a new games-per-day estimate. Every record
// passed in is stamped with the cycle time once discovery completes, read or
// not; an unresolved record keeps its empty account id and is retried the
// next time it is selected. Discover does not close out.
func (o *Orchestrator) Discover(ctx context.Context, players []model.PlayerRecord, out chan<- int64) (Discovery, error) {
	var d Discovery
	now := o.now().UnixMilli()
	horizon := o.now().Add(-o.lookbehind).UnixMilli()

	var eligible []int
	for i := range players {
		if players[i].AccountID != "" {
			eligible = append(eligible, i)
		}
	}

	for start := 0; start < len(eligible); start += o.matchlistBatch {
		batch := eligible[start:min(start+o.matchlistBatch, len(eligible))]
		lists := make([][]model.MatchRef, len(batch))
		failed := make([]bool, len(batch))
		err := inBatches(ctx, batch, len(batch), func(ctx context.Context, i, idx int) {
			p := players[idx]
			refs, err := o.client.MatchList(ctx, p.AccountID, max(horizon, p.TS))
			if err != nil {
				o.log.Warn(ctx, "match history failed", logger.String("player_id", p.ID), logger.Error(err))
				failed[i] = true
				return
			}
			lists[i] = refs
		})
		if err != nil {
			return d, err
		}

		for i, idx := range batch {
			if failed[i] {
				continue
			}
			p := &players[idx]
			updateGamesPerDay(p, len(lists[i]), now-max(horizon, p.TS))
			d.Refreshed++

			fresh := 0
			for _, ref := range lists[i] {
				d.Seen++
				if o.index.SeenAndRecord(ctx, ref.ID) {
					continue
				}
				fresh++
				select {
				case out <- ref.ID:
				case <-ctx.Done():
					return d, ctx.Err()
				}
			}
			d.New += fresh
			metrics.RecordMatchIDs(len(lists[i]), fresh)
		}
	}
	for i := range players {
		players[i].TS = now
	}
	o.log.Info(ctx, "match ids discovered",
		logger.Int("refreshed", d.Refreshed), logger.Int("seen", d.Seen), logger.Int("new", d.New))
	return d, nil
}

// updateGamesPerDay folds n matches over elapsedMillis into the record's
// smoothed rate: the new sample is averaged with the stored rate, or with
// itself when there is none.
func updateGamesPerDay(p *model.PlayerRecord, n int, elapsedMillis int64) {
	if elapsedMillis <= 0 {
		return
	}
	sample := float64(n) * millisPerDay / float64(elapsedMillis)
	old := sample
	if p.GamesPerDay != nil {
		old = *p.GamesPerDay
	}
	rate := (old + sample) / 2
	p.GamesPerDay = &rate
}
