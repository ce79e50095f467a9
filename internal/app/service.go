// Package service runs crawl cycles: load persisted state, select the
// players to refresh, fetch and score new matches, and merge the results
// back into storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	eventqueue "github.com/okian/rankcrawl/internal/adapters/mq/queue"
	workerpool "github.com/okian/rankcrawl/internal/adapters/mq/worker"
	"github.com/okian/rankcrawl/internal/adapters/repository"
	"github.com/okian/rankcrawl/internal/crawl"
	"github.com/okian/rankcrawl/internal/domain/dedupe"
	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/internal/domain/scoring"
	"github.com/okian/rankcrawl/internal/domain/selection"
	"github.com/okian/rankcrawl/internal/merge"
	"github.com/okian/rankcrawl/pkg/logger"
	"github.com/okian/rankcrawl/pkg/metrics"
)

const (
	defaultUpdateSize    = 100
	defaultQueueSize     = 10_000
	defaultConsumerCount = 4
	poolStopTimeout      = 10 * time.Second
)

// Store is the persisted state a cycle reads and writes.
type Store interface {
	merge.Store
	LoadIndex(ctx context.Context) (*dedupe.Index, error)
	ReadPartitions(ctx context.Context, fn func(model.MatchRecord) error) error
}

// Service runs crawl cycles against one remote client and one store.
type Service struct {
	client crawl.Client
	store  Store
	logger logger.Logger
	now    func() time.Time

	updateSize    int
	queueSize     int
	consumerCount int
	pullRanks     bool
	bootstrap     bool
	crawlOpts     []crawl.Option

	progress progress
}

// New constructs a Service with default configuration.
func New(client crawl.Client, store Store, opts ...Option) *Service {
	s := &Service{
		client:        client,
		store:         store,
		logger:        logger.Nop(),
		now:           time.Now,
		updateSize:    defaultUpdateSize,
		queueSize:     defaultQueueSize,
		consumerCount: defaultConsumerCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary reports what one cycle did.
type Summary struct {
	CycleID     string
	Selected    int
	Ranked      int
	Resolved    int
	Unresolved  int
	Refreshed   int
	NewMatchIDs int
	Fetched     int
	Scored      int
	Persisted   merge.Outcome
	Duration    time.Duration
}

// state is what a cycle loads before any remote call.
type state struct {
	index    *dedupe.Index
	selected []model.PlayerRecord
	// stored is the ladder view of the roster: every record with a known tier.
	stored map[string]model.LadderEntry
}

// RunCycle runs one full cycle. Missing or unreadable persisted state fails
// the cycle before the remote service is contacted.
func (s *Service) RunCycle(ctx context.Context) (sum Summary, err error) {
	sum = Summary{CycleID: uuid.NewString()}
	log := s.logger.With(logger.String("cycle_id", sum.CycleID))
	start := s.now()

	s.progress.begin(sum.CycleID, start)

	outcome := "failed"
	defer func() {
		sum.Duration = s.now().Sub(start)
		metrics.RecordCycle(sum.Duration, outcome)
		if outcome == "ok" {
			s.progress.finish(sum, PhaseDone)
		} else {
			s.progress.finish(sum, PhaseFailed)
		}
	}()

	log.Info(ctx, "cycle started", logger.Bool("pull_ranks", s.pullRanks), logger.Int("update_size", s.updateSize))

	st, err := s.load(ctx, log)
	if err != nil {
		log.Error(ctx, "cannot load persisted state", logger.Error(err))
		return sum, err
	}
	sum.Selected = len(st.selected)
	s.progress.enter(PhaseCrawling)

	queue := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	collector := workerpool.NewCollector()
	scorer := scoring.NewRosterScorer(scoring.WithTierLookup(scoring.LadderLookup(st.stored)))
	pool := workerpool.NewPool(s.consumerCount, queue, scorer, collector, log)
	pool.Start(ctx)

	orch := crawl.New(s.client, st.index, append(s.crawlOpts, crawl.WithLogger(log.Named("crawl")))...)
	res, err := orch.Run(ctx, st.selected, s.pullRanks, queue)
	if err != nil {
		// Nothing will be persisted, so consumers are stopped without draining.
		s.stopPool(ctx, pool, log)
		metrics.RecordErrorByComponent("crawl", "cycle_error")
		return sum, fmt.Errorf("fetch: %w", err)
	}
	// The orchestrator closes the queue; consumers stop once it drains.
	pool.Wait()

	sum.Resolved, sum.Unresolved = res.Discovery.Resolved, res.Discovery.Unresolved
	sum.Refreshed, sum.NewMatchIDs = res.Discovery.Refreshed, res.Discovery.New
	sum.Fetched, sum.Scored = res.Fetched, collector.Len()

	ranked := res.Ranked
	if !s.pullRanks {
		ranked = st.stored
	}
	sum.Ranked = len(ranked)

	s.progress.enter(PhaseMerging)
	merger := merge.New(s.store, isNotFound,
		merge.WithBootstrap(s.bootstrap),
		merge.WithLogger(log.Named("merge")),
	)
	sum.Persisted, err = merger.Commit(ctx, merge.Cycle{
		Updated: res.Players,
		Ranked:  ranked,
		Matches: collector.Records(),
		Index:   st.index,
	})
	if err != nil {
		return sum, fmt.Errorf("persist: %w", err)
	}

	outcome = "ok"
	log.Info(ctx, "cycle finished",
		logger.Int("selected", sum.Selected),
		logger.Int("resolved", sum.Resolved),
		logger.Int("unresolved", sum.Unresolved),
		logger.Int("new_match_ids", sum.NewMatchIDs),
		logger.Int("fetched", sum.Fetched),
		logger.Int("scored", sum.Scored),
		logger.Int("partitions", len(sum.Persisted.Partitions)),
		logger.Int("roster", sum.Persisted.RosterSize),
		logger.Duration("elapsed", s.now().Sub(start)),
	)
	return sum, nil
}

func (s *Service) stopPool(ctx context.Context, pool *workerpool.Pool, log logger.Logger) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), poolStopTimeout)
	defer cancel()
	if err := pool.Shutdown(stopCtx); err != nil {
		log.Warn(ctx, "match consumers did not stop", logger.Error(err))
	}
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

func isCorrupt(err error) bool {
	return errors.Is(err, repository.ErrCorrupt) || errors.Is(err, dedupe.ErrCorruptSnapshot)
}

// load reads the membership index and the roster concurrently.
func (s *Service) load(ctx context.Context, log logger.Logger) (state, error) {
	var st state
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		x, err := s.loadIndex(gctx, log)
		st.index = x
		return err
	})
	g.Go(func() error {
		selected, stored, err := s.loadRoster(gctx, log)
		st.selected, st.stored = selected, stored
		return err
	})
	if err := g.Wait(); err != nil {
		return state{}, err
	}
	metrics.UpdateIndex(st.index.Len(), st.index.Density())
	return st, nil
}

// loadIndex reads the newest index snapshot. When none exists yet the index
// is rebuilt from the match partitions already on disk.
func (s *Service) loadIndex(ctx context.Context, log logger.Logger) (*dedupe.Index, error) {
	x, err := s.store.LoadIndex(ctx)
	switch {
	case err == nil:
		log.Info(ctx, "index loaded", logger.Int("ids", x.Len()))
		return x, nil
	case isCorrupt(err):
		return nil, fmt.Errorf("%w: index: %w", ErrCorruptPersistedState, err)
	case !isNotFound(err):
		return nil, fmt.Errorf("load index: %w", err)
	}

	x = dedupe.New()
	err = s.store.ReadPartitions(ctx, func(m model.MatchRecord) error {
		x.Insert(m.ID)
		return nil
	})
	if err != nil {
		if isCorrupt(err) {
			return nil, fmt.Errorf("%w: partitions: %w", ErrCorruptPersistedState, err)
		}
		return nil, fmt.Errorf("seed index: %w", err)
	}
	log.Info(ctx, "no index snapshot, seeded from partitions", logger.Int("ids", x.Len()))
	return x, nil
}

// loadRoster streams the newest roster once, selecting the least recently
// updated players and collecting the ladder view of every ranked record.
func (s *Service) loadRoster(ctx context.Context, log logger.Logger) ([]model.PlayerRecord, map[string]model.LadderEntry, error) {
	stored := make(map[string]model.LadderEntry)
	path, err := s.store.LatestRoster(ctx)
	switch {
	case err == nil:
	case isNotFound(err) && s.bootstrap:
		log.Info(ctx, "no roster snapshot, bootstrapping")
		return nil, stored, nil
	case isNotFound(err):
		return nil, nil, fmt.Errorf("%w: %w", ErrMissingBootstrapState, err)
	default:
		return nil, nil, fmt.Errorf("locate roster: %w", err)
	}

	var readErr error
	records := func(yield func(model.PlayerRecord) bool) {
		readErr = s.store.ReadRoster(ctx, path, func(p model.PlayerRecord) error {
			if p.Tier.Known() {
				stored[p.ID] = model.LadderEntry{PlayerID: p.ID, Tier: p.Tier, LeagueID: p.LeagueID}
			}
			if !yield(p) {
				return errStop
			}
			return nil
		})
	}
	selected := selection.SelectOldest(records, s.updateSize)
	if readErr != nil {
		if isCorrupt(readErr) {
			return nil, nil, fmt.Errorf("%w: roster: %w", ErrCorruptPersistedState, readErr)
		}
		return nil, nil, fmt.Errorf("read roster: %w", readErr)
	}
	log.Info(ctx, "roster loaded", logger.String("path", path),
		logger.Int("ranked", len(stored)), logger.Int("selected", len(selected)))
	return selected, stored, nil
}

var errStop = errors.New("stop")
