// Package merge reconciles the results of one crawl cycle into durable
// storage: the roster, the match partitions, the league reference and the
// membership index snapshot.
package merge

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/okian/rankcrawl/internal/domain/dedupe"
	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/internal/domain/partition"
	"github.com/okian/rankcrawl/internal/domain/selection"
	"github.com/okian/rankcrawl/pkg/logger"
	"github.com/okian/rankcrawl/pkg/metrics"
)

// Store is the durable storage the merger writes to.
type Store interface {
	LatestRoster(ctx context.Context) (string, error)
	ReadRoster(ctx context.Context, path string, fn func(model.PlayerRecord) error) error
	WriteRoster(ctx context.Context, records iter.Seq2[model.PlayerRecord, error]) (string, int, error)
	AppendPartition(ctx context.Context, key partition.Key, recs []model.MatchRecord) (string, error)
	WriteLeagues(ctx context.Context, entries []model.LeagueEntry) (string, error)
	WriteIndex(ctx context.Context, x *dedupe.Index) (string, error)
}

// NotFoundFunc reports whether err means a snapshot does not exist.
type NotFoundFunc func(err error) bool

// Cycle is what one crawl cycle hands to the merger.
type Cycle struct {
	// Updated are the selected records after discovery.
	Updated []model.PlayerRecord
	// Ranked maps player id to its current ladder entry.
	Ranked map[string]model.LadderEntry
	// Matches are the records scored this cycle.
	Matches []model.MatchRecord
	// Index is the membership index including this cycle's ids.
	Index *dedupe.Index
}

// Outcome describes what a commit wrote.
type Outcome struct {
	RosterPath  string
	RosterSize  int
	Added       int // ladder entrants new to the roster
	Partitions  []string
	BadVersions int // matches dropped for an unparsable version
	LeaguePath  string
	Leagues     int
	IndexPath   string
}

// Merger writes cycle results through a Store.
type Merger struct {
	store     Store
	notFound  NotFoundFunc
	log       logger.Logger
	bootstrap bool
	window    int
}

// New creates a Merger. notFound classifies the store's "no snapshot" error.
func New(store Store, notFound NotFoundFunc, opts ...Option) *Merger {
	m := &Merger{
		store:    store,
		notFound: notFound,
		log:      logger.Nop(),
		window:   selection.RankWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Commit produces all four outputs concurrently. Every output is attempted;
// the returned error lists each one that failed. Outputs that succeeded are
// kept even when another fails.
func (m *Merger) Commit(ctx context.Context, c Cycle) (Outcome, error) {
	var (
		out Outcome
		g   multierror.Group
	)

	// Each goroutine owns distinct fields of out.
	g.Go(func() error {
		r, err := m.MergeRoster(ctx, c.Updated, c.Ranked)
		out.RosterPath, out.RosterSize, out.Added = r.RosterPath, r.RosterSize, r.Added
		return m.failed(ctx, "roster", err)
	})
	g.Go(func() error {
		var err error
		out.Partitions, out.BadVersions, err = m.WritePartitions(ctx, c.Matches)
		return m.failed(ctx, "partitions", err)
	})
	g.Go(func() error {
		var err error
		out.LeaguePath, out.Leagues, err = m.WriteLeagues(ctx, c.Ranked)
		return m.failed(ctx, "leagues", err)
	})
	g.Go(func() error {
		var err error
		out.IndexPath, err = m.WriteIndex(ctx, c.Index)
		return m.failed(ctx, "index", err)
	})

	return out, g.Wait().ErrorOrNil()
}

func (m *Merger) failed(ctx context.Context, output string, err error) error {
	if err == nil {
		return nil
	}
	metrics.RecordPersistError(output)
	m.log.Error(ctx, "persist failed", logger.String("output", output), logger.Error(err))
	return fmt.Errorf("%s: %w", output, err)
}

var errStop = errors.New("stop")

// MergeRoster rewrites the roster. Every stored record is overlaid with the
// cycle's update for the same id (account id, games-per-day, newer
// timestamp) and with its ranked ladder entry (tier, league). Ranked
// players missing from the roster are appended with no timestamp, so the
// selector treats them as most overdue. Records are written best rank
// first through the streaming rank window.
func (m *Merger) MergeRoster(ctx context.Context, updated []model.PlayerRecord, ranked map[string]model.LadderEntry) (Outcome, error) {
	path, err := m.store.LatestRoster(ctx)
	switch {
	case err == nil:
	case m.notFound(err) && m.bootstrap:
		path = ""
		m.log.Info(ctx, "no roster snapshot, bootstrapping from ladder", logger.Int("ranked", len(ranked)))
	case m.notFound(err):
		return Outcome{}, fmt.Errorf("%w: %w", ErrMissingRoster, err)
	default:
		return Outcome{}, fmt.Errorf("locate roster: %w", err)
	}

	updates := make(map[string]model.PlayerRecord, len(updated))
	for _, u := range updated {
		updates[u.ID] = u
	}
	placed := make(map[string]struct{}, len(ranked)+len(updated))
	added := 0

	overlay := func(p model.PlayerRecord) model.PlayerRecord {
		if u, ok := updates[p.ID]; ok {
			if u.AccountID != "" {
				p.AccountID = u.AccountID
			}
			if u.GamesPerDay != nil {
				p.GamesPerDay = u.GamesPerDay
			}
			p.TS = max(p.TS, u.TS)
		}
		if e, ok := ranked[p.ID]; ok {
			if e.Tier.Known() {
				p.Tier = e.Tier
			}
			if e.LeagueID != "" {
				p.LeagueID = e.LeagueID
			}
		}
		placed[p.ID] = struct{}{}
		return p
	}

	var readErr error
	merged := func(yield func(model.PlayerRecord) bool) {
		if path != "" {
			err := m.store.ReadRoster(ctx, path, func(p model.PlayerRecord) error {
				if !yield(overlay(p)) {
					return errStop
				}
				return nil
			})
			if err != nil {
				if !errors.Is(err, errStop) {
					readErr = err
				}
				return
			}
		}
		for _, u := range updated {
			if _, ok := placed[u.ID]; ok {
				continue
			}
			if !yield(overlay(model.PlayerRecord{ID: u.ID})) {
				return
			}
		}
		for _, id := range sortedKeys(ranked) {
			if _, ok := placed[id]; ok {
				continue
			}
			added++
			if !yield(overlay(model.PlayerRecord{ID: id})) {
				return
			}
		}
	}

	ordered := func(yield func(model.PlayerRecord, error) bool) {
		err := selection.StreamByRank(merged, m.window, func(p model.PlayerRecord) error {
			if !yield(p, nil) {
				return errStop
			}
			return nil
		})
		if err == nil && readErr != nil {
			yield(model.PlayerRecord{}, readErr)
		}
	}

	written, n, err := m.store.WriteRoster(ctx, ordered)
	if err != nil {
		return Outcome{}, fmt.Errorf("write roster: %w", err)
	}
	metrics.UpdateRosterSize(n)
	m.log.Info(ctx, "roster written", logger.String("path", written), logger.Int("records", n), logger.Int("added", added))
	return Outcome{RosterPath: written, RosterSize: n, Added: added}, nil
}

// WritePartitions appends recs to their partition files, one file at a
// time in key order. Records whose version cannot be parsed are dropped
// and counted.
func (m *Merger) WritePartitions(ctx context.Context, recs []model.MatchRecord) ([]string, int, error) {
	groups, bad := partition.Group(recs)
	for _, r := range bad {
		m.log.Warn(ctx, "match without partition", logger.Int64("match_id", r.ID), logger.String("version", r.Version))
	}

	keys := make([]partition.Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b partition.Key) int { return cmp.Compare(a.String(), b.String()) })

	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return paths, len(bad), err
		}
		path, err := m.store.AppendPartition(ctx, k, groups[k])
		if err != nil {
			return paths, len(bad), fmt.Errorf("partition %s: %w", k, err)
		}
		metrics.RecordPartitionWritten()
		paths = append(paths, path)
	}
	m.log.Info(ctx, "partitions written", logger.Int("partitions", len(paths)), logger.Int("matches", len(recs)-len(bad)))
	return paths, len(bad), nil
}

// WriteLeagues rewrites the league reference from the distinct (tier,
// league) pairs of ranked.
func (m *Merger) WriteLeagues(ctx context.Context, ranked map[string]model.LadderEntry) (string, int, error) {
	entries := Leagues(ranked)
	path, err := m.store.WriteLeagues(ctx, entries)
	if err != nil {
		return "", 0, fmt.Errorf("write leagues: %w", err)
	}
	return path, len(entries), nil
}

// WriteIndex snapshots the membership index.
func (m *Merger) WriteIndex(ctx context.Context, x *dedupe.Index) (string, error) {
	if x == nil {
		return "", errors.New("nil index")
	}
	path, err := m.store.WriteIndex(ctx, x)
	if err != nil {
		return "", fmt.Errorf("write index: %w", err)
	}
	metrics.UpdateIndex(x.Len(), x.Density())
	m.log.Info(ctx, "index written", logger.String("path", path), logger.Int("ids", x.Len()))
	return path, nil
}

// Leagues returns the distinct (tier, league) pairs of ranked, best tier
// first. Entries without a league id or a known tier are skipped.
func Leagues(ranked map[string]model.LadderEntry) []model.LeagueEntry {
	set := make(map[model.LeagueEntry]struct{})
	for _, e := range ranked {
		if e.LeagueID == "" || !e.Tier.Known() {
			continue
		}
		set[model.LeagueEntry{Tier: e.Tier, LeagueID: e.LeagueID}] = struct{}{}
	}
	out := make([]model.LeagueEntry, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.LeagueEntry) int {
		ao, _ := a.Tier.Ordinal()
		bo, _ := b.Tier.Ordinal()
		if c := cmp.Compare(ao, bo); c != 0 {
			return c
		}
		return cmp.Compare(a.LeagueID, b.LeagueID)
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
