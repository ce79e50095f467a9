package merge_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/rankcrawl/internal/adapters/repository"
	"github.com/okian/rankcrawl/internal/domain/dedupe"
	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/internal/merge"
)

func tickingClock() func() time.Time {
	t := time.Date(2020, 1, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func notFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

func seed(ps ...model.PlayerRecord) func(yield func(model.PlayerRecord, error) bool) {
	return func(yield func(model.PlayerRecord, error) bool) {
		for _, p := range ps {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func ids(ps []model.PlayerRecord) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

var wk3 = time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC).UnixMilli()

func TestMergeRoster(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given no roster snapshot", t, func() {
		fs := repository.NewFS(t.TempDir(), repository.WithClock(tickingClock()))
		ranked := map[string]model.LadderEntry{
			"a": {PlayerID: "a", Tier: model.TierGold, LeagueID: "L1"},
			"b": {PlayerID: "b", Tier: model.TierChallenger, LeagueID: "L2"},
		}

		convey.Convey("When bootstrapping is allowed", func() {
			m := merge.New(fs, notFound, merge.WithBootstrap(true))
			out, err := m.MergeRoster(ctx, nil, ranked)

			convey.Convey("Then the roster is built from the ladder, best tier first and never updated", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.RosterSize, convey.ShouldEqual, 2)
				convey.So(out.Added, convey.ShouldEqual, 2)

				got, err := loadRoster(ctx, fs)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ids(got), convey.ShouldResemble, []string{"b", "a"})
				convey.So(got[0].LeagueID, convey.ShouldEqual, "L2")
				convey.So(got[1].Updated(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When bootstrapping is not allowed", func() {
			m := merge.New(fs, notFound)
			_, err := m.MergeRoster(ctx, nil, ranked)

			convey.Convey("Then the merge fails and writes nothing", func() {
				convey.So(errors.Is(err, merge.ErrMissingRoster), convey.ShouldBeTrue)
				entries, _ := os.ReadDir(fs.Dir())
				convey.So(entries, convey.ShouldBeEmpty)
			})
		})
	})

	convey.Convey("Given a stored roster", t, func() {
		fs := repository.NewFS(t.TempDir(), repository.WithClock(tickingClock()))
		_, _, err := fs.WriteRoster(ctx, seed(
			model.PlayerRecord{ID: "p1", Tier: model.TierSilver, LeagueID: "L0", TS: 100},
			model.PlayerRecord{ID: "p2", AccountID: "A2", TS: 500},
		))
		convey.So(err, convey.ShouldBeNil)

		gpd := 1.5
		updated := []model.PlayerRecord{
			{ID: "p1", AccountID: "A1", GamesPerDay: &gpd, TS: 200},
			{ID: "p2", TS: 400},
		}
		ranked := map[string]model.LadderEntry{
			"p1": {PlayerID: "p1", Tier: model.TierGold, LeagueID: "L1"},
			"p3": {PlayerID: "p3", Tier: model.TierIron, LeagueID: "L9"},
		}
		m := merge.New(fs, notFound, merge.WithRankWindow(4))
		out, err := m.MergeRoster(ctx, updated, ranked)
		convey.So(err, convey.ShouldBeNil)

		got, err := loadRoster(ctx, fs)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then updates and ladder entries are overlaid by id", func() {
			convey.So(got[0].ID, convey.ShouldEqual, "p1")
			convey.So(got[0].AccountID, convey.ShouldEqual, "A1")
			convey.So(*got[0].GamesPerDay, convey.ShouldEqual, 1.5)
			convey.So(got[0].TS, convey.ShouldEqual, int64(200))
			convey.So(got[0].Tier, convey.ShouldEqual, model.TierGold)
			convey.So(got[0].LeagueID, convey.ShouldEqual, "L1")
		})

		convey.Convey("Then absent fields and newer timestamps are kept", func() {
			p2 := got[2]
			convey.So(p2.ID, convey.ShouldEqual, "p2")
			convey.So(p2.AccountID, convey.ShouldEqual, "A2")
			convey.So(p2.TS, convey.ShouldEqual, int64(500))
		})

		convey.Convey("Then new ladder entrants are appended as most overdue", func() {
			convey.So(out.Added, convey.ShouldEqual, 1)
			convey.So(out.RosterSize, convey.ShouldEqual, 3)
			convey.So(ids(got), convey.ShouldResemble, []string{"p1", "p3", "p2"})
			convey.So(got[1].TS, convey.ShouldEqual, int64(0))
			convey.So(got[1].Tier, convey.ShouldEqual, model.TierIron)
		})
	})
}

func TestWritePartitions(t *testing.T) {
	convey.Convey("Given matches of two versions and one unparsable version", t, func() {
		fs := repository.NewFS(t.TempDir())
		m := merge.New(fs, notFound)
		recs := []model.MatchRecord{
			{ID: 1, Tier: model.TierGold, TS: wk3, Version: "10.1.303.1"},
			{ID: 2, TS: wk3, Version: "10.1.999.2"},
			{ID: 3, Tier: model.TierIron, TS: wk3, Version: "10.2.1.1"},
			{ID: 4, TS: wk3, Version: "patch"},
		}

		paths, bad, err := m.WritePartitions(context.Background(), recs)

		convey.Convey("Then one file per key is written and the bad record is counted", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(bad, convey.ShouldEqual, 1)
			convey.So(paths, convey.ShouldHaveLength, 2)
			convey.So(filepath.Base(paths[0]), convey.ShouldEqual, "matches.10.1.2020-W03.csv.gz")
			convey.So(filepath.Base(paths[1]), convey.ShouldEqual, "matches.10.2.2020-W03.csv.gz")

			var got []int64
			err := fs.ReadPartitions(context.Background(), func(r model.MatchRecord) error {
				got = append(got, r.ID)
				return nil
			})
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldResemble, []int64{1, 2, 3})
		})
	})
}

func TestLeagues(t *testing.T) {
	convey.Convey("Given ladder entries sharing leagues", t, func() {
		ranked := map[string]model.LadderEntry{
			"a": {Tier: model.TierGold, LeagueID: "Lg"},
			"b": {Tier: model.TierGold, LeagueID: "Lg"},
			"c": {Tier: model.TierMaster, LeagueID: "Lm"},
			"d": {Tier: model.TierGold, LeagueID: "Lf"},
			"e": {Tier: model.TierGold},
		}

		convey.Convey("Then distinct pairs are returned best tier first", func() {
			convey.So(merge.Leagues(ranked), convey.ShouldResemble, []model.LeagueEntry{
				{Tier: model.TierMaster, LeagueID: "Lm"},
				{Tier: model.TierGold, LeagueID: "Lf"},
				{Tier: model.TierGold, LeagueID: "Lg"},
			})
		})
	})
}

// leagueFailingFS fails the league reference write only.
type leagueFailingFS struct {
	*repository.FS
}

func (leagueFailingFS) WriteLeagues(context.Context, []model.LeagueEntry) (string, error) {
	return "", errors.New("disk full")
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	cycle := func() merge.Cycle {
		x := dedupe.New()
		x.Insert(1)
		return merge.Cycle{
			Ranked:  map[string]model.LadderEntry{"a": {PlayerID: "a", Tier: model.TierGold, LeagueID: "L1"}},
			Matches: []model.MatchRecord{{ID: 1, TS: wk3, Version: "10.1.1.1"}},
			Index:   x,
		}
	}

	convey.Convey("Given a bootstrap cycle", t, func() {
		fs := repository.NewFS(t.TempDir())
		m := merge.New(fs, notFound, merge.WithBootstrap(true))

		out, err := m.Commit(ctx, cycle())

		convey.Convey("Then all four outputs are written", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out.RosterSize, convey.ShouldEqual, 1)
			convey.So(out.Partitions, convey.ShouldHaveLength, 1)
			convey.So(out.Leagues, convey.ShouldEqual, 1)
			convey.So(out.IndexPath, convey.ShouldNotBeEmpty)

			x, err := fs.LoadIndex(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(x.Contains(1), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a store whose league write fails", t, func() {
		fs := repository.NewFS(t.TempDir())
		m := merge.New(leagueFailingFS{fs}, notFound, merge.WithBootstrap(true))

		out, err := m.Commit(ctx, cycle())

		convey.Convey("Then the failure is reported and the other outputs stay committed", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "leagues")
			convey.So(out.RosterPath, convey.ShouldNotBeEmpty)
			convey.So(out.IndexPath, convey.ShouldNotBeEmpty)
			_, err = loadRoster(ctx, fs)
			convey.So(err, convey.ShouldBeNil)
		})
	})
}

// loadRoster reads the newest roster snapshot into memory.
func loadRoster(ctx context.Context, fs *repository.FS) ([]model.PlayerRecord, error) {
	path, err := fs.LatestRoster(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.PlayerRecord
	err = fs.ReadRoster(ctx, path, func(p model.PlayerRecord) error {
		out = append(out, p)
		return nil
	})
	return out, err
}
