// Package crawl drives the three fetch stages of a crawl cycle.
//
// Stage A paginates the ranked ladder. Stage B resolves missing account ids
// and discovers match ids not yet in the membership index. Stage C fetches
// the details of new matches and streams them to a Producer. Every stage
// issues requests in fixed-size batches: all requests of a batch are issued
// before any is awaited, and the next batch waits for the previous one.
package crawl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/rankcrawl/internal/domain/dedupe"
	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
)

const (
	defaultPageBatch      = 10
	defaultAccountBatch   = 20
	defaultMatchlistBatch = 20
	defaultMatchBatch     = 20
	defaultLookbehind     = 72 * time.Hour
	progressEvery         = 10_000
)

// Orchestrator runs the fetch stages against one Client and one index.
// Only the goroutine running Stage B mutates the index.
type Orchestrator struct {
	client Client
	index  dedupe.Deduper
	log    logger.Logger
	now    func() time.Time

	pageBatch      int
	accountBatch   int
	matchlistBatch int
	matchBatch     int
	lookbehind     time.Duration
	brackets       []model.Bracket
}

// New creates an Orchestrator.
func New(client Client, index dedupe.Deduper, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:         client,
		index:          index,
		log:            logger.Nop(),
		now:            time.Now,
		pageBatch:      defaultPageBatch,
		accountBatch:   defaultAccountBatch,
		matchlistBatch: defaultMatchlistBatch,
		matchBatch:     defaultMatchBatch,
		lookbehind:     defaultLookbehind,
		brackets:       model.Brackets(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result is what one cycle's fetch stages produced.
type Result struct {
	// Ranked maps player id to the ladder entry seen in Stage A. Nil when
	// the ladder was not paginated.
	Ranked map[string]model.LadderEntry
	// Players are the selected records after Stage B updates.
	Players []model.PlayerRecord
	// Discovery counts Stage B outcomes.
	Discovery Discovery
	// Fetched is the number of match details handed to the Producer.
	Fetched int
}

// Run executes Stage A (when pullRanks is set) concurrently with Stages B
// and C over players. Stage C consumes match ids while Stage B is still
// discovering them. The producer is closed when Stage C finishes.
func (o *Orchestrator) Run(ctx context.Context, players []model.PlayerRecord, pullRanks bool, out Producer) (Result, error) {
	var res Result
	g, gctx := errgroup.WithContext(ctx)

	if pullRanks {
		g.Go(func() error {
			ranked, err := o.FetchRanked(gctx)
			if err != nil {
				return fmt.Errorf("stage A: %w", err)
			}
			res.Ranked = ranked
			return nil
		})
	}

	g.Go(func() error {
		// Stage C failing must also stop Stage B from feeding it.
		bctx, cancel := context.WithCancel(gctx)
		defer cancel()

		ids := make(chan int64, o.matchBatch*4)
		fetched := make(chan error, 1)
		go func() {
			n, err := o.FetchMatches(bctx, ids, out)
			if err != nil {
				cancel()
			}
			res.Fetched = n
			fetched <- err
		}()

		resolved, unresolved := o.ResolveAccounts(bctx, players)
		disc, discErr := o.Discover(bctx, players, ids)
		close(ids)
		disc.Resolved, disc.Unresolved = resolved, unresolved
		res.Discovery = disc

		if err := <-fetched; err != nil {
			return fmt.Errorf("stage C: %w", err)
		}
		if discErr != nil {
			return fmt.Errorf("stage B: %w", discErr)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Players = players
	return res, nil
}

// inBatches calls fn for every item, size items at a time. Every call of a
// batch is started before any is awaited; the next batch starts only after
// the previous one has fully resolved.
func inBatches[T any](ctx context.Context, items []T, size int, fn func(ctx context.Context, i int, item T)) error {
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				fn(ctx, i, items[i])
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
