package selection_test

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/internal/domain/selection"
	. "github.com/smartystreets/goconvey/convey"
)

func roster(n int, seed int64) []model.PlayerRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.PlayerRecord, n)
	for i := range out {
		out[i] = model.PlayerRecord{
			ID:   fmt.Sprintf("p%05d", i),
			Tier: model.Tiers[rng.Intn(len(model.Tiers))],
		}
		// a few never-updated records and plenty of timestamp ties
		if rng.Intn(10) != 0 {
			out[i].TS = 1_600_000_000_000 + rng.Int63n(50)
		}
	}
	return out
}

func fullSortOldest(records []model.PlayerRecord, k int) []model.PlayerRecord {
	sorted := slices.Clone(records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TS != sorted[j].TS {
			return sorted[i].TS < sorted[j].TS
		}
		return sorted[i].ID < sorted[j].ID
	})
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}

func TestSelectOldest(t *testing.T) {
	Convey("Given a roster with ties and missing timestamps", t, func() {
		records := roster(2000, 1)

		for _, k := range []int{1, 10, 500, 2000, 5000} {
			Convey(fmt.Sprintf("When selecting the oldest %d", k), func() {
				got := selection.SelectOldest(slices.Values(records), k)

				Convey("Then it matches a full sort", func() {
					So(got, ShouldResemble, fullSortOldest(records, k))
				})
			})
		}

		Convey("When the input order is shuffled", func() {
			shuffled := slices.Clone(records)
			rand.New(rand.NewSource(99)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			Convey("Then the selection is unchanged", func() {
				So(selection.SelectOldest(slices.Values(shuffled), 100),
					ShouldResemble, selection.SelectOldest(slices.Values(records), 100))
			})
		})

		Convey("When k is zero", func() {
			So(selection.SelectOldest(slices.Values(records), 0), ShouldBeEmpty)
		})
	})

	Convey("Given a never-updated record and an updated one", t, func() {
		fresh := model.PlayerRecord{ID: "zzz"}
		stale := model.PlayerRecord{ID: "aaa", TS: 100}

		Convey("Then the never-updated record is most overdue", func() {
			got := selection.SelectOldest(slices.Values([]model.PlayerRecord{stale, fresh}), 1)
			So(got, ShouldHaveLength, 1)
			So(got[0].ID, ShouldEqual, "zzz")
		})
	})
}

func TestStreamByRank(t *testing.T) {
	Convey("Given a roster", t, func() {
		records := roster(3000, 2)
		records = append(records, model.PlayerRecord{ID: "unranked"})

		Convey("When it fits in the window", func() {
			var out []model.PlayerRecord
			err := selection.StreamByRank(slices.Values(records[:200]), 0, func(r model.PlayerRecord) error {
				out = append(out, r)
				return nil
			})

			Convey("Then the output is sorted best tier first", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 200)
				for i := 1; i < len(out); i++ {
					a, _ := out[i-1].Tier.Ordinal()
					b, _ := out[i].Tier.Ordinal()
					So(a, ShouldBeLessThanOrEqualTo, b)
				}
			})
		})

		Convey("When it exceeds the window", func() {
			seen := make(map[string]int)
			err := selection.StreamByRank(slices.Values(records), 64, func(r model.PlayerRecord) error {
				seen[r.ID]++
				return nil
			})

			Convey("Then every record is emitted exactly once", func() {
				So(err, ShouldBeNil)
				So(len(seen), ShouldEqual, len(records))
				for _, n := range seen {
					So(n, ShouldEqual, 1)
				}
			})
		})

		Convey("When emit fails", func() {
			boom := errors.New("disk full")
			calls := 0
			err := selection.StreamByRank(slices.Values(records), 16, func(model.PlayerRecord) error {
				calls++
				return boom
			})

			Convey("Then streaming stops with that error", func() {
				So(err, ShouldEqual, boom)
				So(calls, ShouldEqual, 1)
			})
		})
	})
}
