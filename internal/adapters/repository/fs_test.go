package repository_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/okian/rankcrawl/internal/adapters/repository"
	"github.com/okian/rankcrawl/internal/domain/dedupe"
	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/internal/domain/partition"
	. "github.com/smartystreets/goconvey/convey"
)

// tickingClock advances one minute per call so every snapshot gets a new name.
func tickingClock() func() time.Time {
	t := time.Date(2020, 1, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func rows(ps []model.PlayerRecord) iter.Seq2[model.PlayerRecord, error] {
	return func(yield func(model.PlayerRecord, error) bool) {
		for _, p := range ps {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func gunzipAll(path string) string {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	So(err, ShouldBeNil)
	raw, err := io.ReadAll(zr)
	So(err, ShouldBeNil)
	return string(raw)
}

func TestRoster(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty data directory", t, func() {
		fs := repository.NewFS(t.TempDir(), repository.WithClock(tickingClock()))

		Convey("Then there is no roster", func() {
			_, err := fs.LatestRoster(ctx)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = loadRoster(ctx, fs)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When two roster snapshots are written", func() {
			gpd := 3.5
			first := []model.PlayerRecord{{ID: "old"}}
			second := []model.PlayerRecord{
				{ID: "a", AccountID: "A", LeagueID: "L1", Tier: model.TierGold, GamesPerDay: &gpd, TS: 1_600_000_000_000},
				{ID: "b"},
			}
			_, _, err := fs.WriteRoster(ctx, rows(first))
			So(err, ShouldBeNil)
			path, n, err := fs.WriteRoster(ctx, rows(second))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			Convey("Then the newest one is loaded with every field intact", func() {
				latest, err := fs.LatestRoster(ctx)
				So(err, ShouldBeNil)
				So(latest, ShouldEqual, path)
				So(filepath.Base(path), ShouldEqual, "summoner.2020-01-15T12-02-00.csv.gz")

				got, err := loadRoster(ctx, fs)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, second)
			})
		})

		Convey("When the records being written fail part way", func() {
			failing := func(yield func(model.PlayerRecord, error) bool) {
				if !yield(model.PlayerRecord{ID: "a"}, nil) {
					return
				}
				yield(model.PlayerRecord{}, errors.New("source read failed"))
			}
			_, _, err := fs.WriteRoster(ctx, failing)

			Convey("Then no snapshot is left behind", func() {
				So(err, ShouldNotBeNil)
				entries, err := os.ReadDir(fs.Dir())
				So(err, ShouldBeNil)
				So(entries, ShouldBeEmpty)
			})
		})

		Convey("When the newest roster is damaged", func() {
			dir := fs.Dir()
			So(os.WriteFile(filepath.Join(dir, "summoner.2030-01-01T00-00-00.csv.gz"), []byte("not gzip"), 0o644), ShouldBeNil)

			Convey("Then loading fails as corrupt", func() {
				_, err := loadRoster(ctx, fs)
				So(errors.Is(err, repository.ErrCorrupt), ShouldBeTrue)
			})
		})

		Convey("When a roster row has an unknown tier", func() {
			f, err := os.Create(filepath.Join(fs.Dir(), "summoner.2030-01-01T00-00-00.csv.gz"))
			So(err, ShouldBeNil)
			zw := gzip.NewWriter(f)
			_, _ = zw.Write([]byte("encrypted_summoner_id,encrypted_account_id,league_id,rank_tier,games_per_day,ts\nx,,,WOOD,,\n"))
			So(zw.Close(), ShouldBeNil)
			So(f.Close(), ShouldBeNil)

			Convey("Then loading fails as corrupt", func() {
				_, err := loadRoster(ctx, fs)
				So(errors.Is(err, repository.ErrCorrupt), ShouldBeTrue)
			})
		})
	})
}

func TestIndexSnapshot(t *testing.T) {
	ctx := context.Background()

	Convey("Given a data directory", t, func() {
		fs := repository.NewFS(t.TempDir(), repository.WithClock(tickingClock()))

		Convey("When no index was ever written", func() {
			_, err := fs.LoadIndex(ctx)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When an index is written and loaded", func() {
			x := dedupe.New()
			x.Insert(3_617_178_774)
			x.Insert(5)
			path, err := fs.WriteIndex(ctx, x)
			So(err, ShouldBeNil)
			So(strings.HasSuffix(path, ".json.zst"), ShouldBeTrue)

			y, err := fs.LoadIndex(ctx)

			Convey("Then membership is preserved", func() {
				So(err, ShouldBeNil)
				So(y.Len(), ShouldEqual, 2)
				So(y.Contains(3_617_178_774), ShouldBeTrue)
				So(y.Contains(5), ShouldBeTrue)
			})
		})

		Convey("When the newest index is unreadable", func() {
			_, err := fs.WriteIndex(ctx, dedupe.New())
			So(err, ShouldBeNil)
			So(os.WriteFile(filepath.Join(fs.Dir(), "match_hbs.2030-01-01T00-00-00.json.zst"), []byte("garbage"), 0o644), ShouldBeNil)

			Convey("Then loading fails closed instead of falling back", func() {
				_, err := fs.LoadIndex(ctx)
				So(errors.Is(err, repository.ErrCorrupt), ShouldBeTrue)
			})
		})
	})
}

func TestPartitions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a partition key", t, func() {
		fs := repository.NewFS(t.TempDir())
		key := partition.Key{Major: 10, Minor: 1, Year: 2020, Week: 3}

		Convey("When rows are appended over two cycles", func() {
			p1, err := fs.AppendPartition(ctx, key, []model.MatchRecord{{ID: 1, Tier: model.TierGold, TS: 10}})
			So(err, ShouldBeNil)
			p2, err := fs.AppendPartition(ctx, key, []model.MatchRecord{{ID: 2, TS: 20}, {ID: 3, Tier: model.TierIron, TS: 30}})
			So(err, ShouldBeNil)
			_, err = fs.AppendPartition(ctx, key, nil)
			So(err, ShouldBeNil)

			Convey("Then one file holds one header and every row", func() {
				So(p1, ShouldEqual, p2)
				So(filepath.Base(p1), ShouldEqual, "matches.10.1.2020-W03.csv.gz")
				So(gunzipAll(p1), ShouldEqual, "match_id,rank_tier,ts\n1,GOLD,10\n2,,20\n3,IRON,30\n")
			})

			Convey("Then the rows can be streamed back", func() {
				var ids []int64
				err := fs.ReadPartitions(ctx, func(m model.MatchRecord) error {
					ids = append(ids, m.ID)
					return nil
				})
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []int64{1, 2, 3})
			})
		})

		Convey("When an append fails after many rows were written", func() {
			path, err := fs.AppendPartition(ctx, key, []model.MatchRecord{{ID: 1, Tier: model.TierGold, TS: 10}})
			So(err, ShouldBeNil)
			before, err := os.Stat(path)
			So(err, ShouldBeNil)

			errDisk := errors.New("no space left on device")
			_, err = fs.AppendPartitionSeq(ctx, key, failingMatches(200_000, errDisk))

			Convey("Then the file is cut back to its previous contents", func() {
				So(errors.Is(err, errDisk), ShouldBeTrue)
				after, err := os.Stat(path)
				So(err, ShouldBeNil)
				So(after.Size(), ShouldEqual, before.Size())

				var ids []int64
				err = fs.ReadPartitions(ctx, func(m model.MatchRecord) error {
					ids = append(ids, m.ID)
					return nil
				})
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []int64{1})
			})
		})

		Convey("When the first append to a new partition fails", func() {
			_, err := fs.AppendPartitionSeq(ctx, key, failingMatches(10, errors.New("boom")))

			Convey("Then no partition file is left behind", func() {
				So(err, ShouldNotBeNil)
				_, statErr := os.Stat(fs.PartitionPath(key))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})
}

// failingMatches yields n records and then err.
func failingMatches(n int, err error) iter.Seq2[model.MatchRecord, error] {
	return func(yield func(model.MatchRecord, error) bool) {
		for i := range n {
			if !yield(model.MatchRecord{ID: int64(1_000_000 + i*7919), Tier: model.TierSilver, TS: int64(i) * 997}, nil) {
				return
			}
		}
		yield(model.MatchRecord{}, err)
	}
}

func TestLeagues(t *testing.T) {
	ctx := context.Background()

	Convey("Given league entries", t, func() {
		fs := repository.NewFS(t.TempDir(), repository.WithClock(tickingClock()))
		entries := []model.LeagueEntry{{Tier: model.TierGold, LeagueID: "L1"}, {Tier: model.TierIron, LeagueID: "L2"}}

		Convey("When they are written twice", func() {
			_, err := fs.WriteLeagues(ctx, entries[:1])
			So(err, ShouldBeNil)
			_, err = fs.WriteLeagues(ctx, entries)
			So(err, ShouldBeNil)

			Convey("Then the newest snapshot holds every entry in order", func() {
				So(gunzipAll(newest(fs.Dir(), "league.*.csv.gz")), ShouldEqual, "tier,league_id\nGOLD,L1\nIRON,L2\n")
			})
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

// newest returns the last file in dir matching pattern by name.
func newest(dir, pattern string) string {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	So(err, ShouldBeNil)
	So(paths, ShouldNotBeEmpty)
	sort.Strings(paths)
	return paths[len(paths)-1]
}
