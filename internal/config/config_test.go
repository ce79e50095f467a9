package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/rankcrawl/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.UpdateSize, convey.ShouldEqual, 100)
			convey.So(cfg.PaginationBatchSize, convey.ShouldEqual, 10)
			convey.So(cfg.QueueType, convey.ShouldEqual, "RANKED_SOLO_5x5")
			convey.So(cfg.QueueID, convey.ShouldEqual, 420)
			convey.So(cfg.PullRanks, convey.ShouldBeFalse)
			convey.So(cfg.Bootstrap, convey.ShouldBeFalse)
			convey.So(cfg.Lookbehind(), convey.ShouldEqual, 72*time.Hour)
			convey.So(cfg.RetryDelay(), convey.ShouldEqual, 500*time.Millisecond)
			convey.So(cfg.HTTPTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		convey.Convey("When bootstrap is set without pull_ranks", func() {
			cfg.Bootstrap = true
			err := cfg.Validate()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "bootstrap requires pull_ranks")
			})
		})

		convey.Convey("When bootstrap and pull_ranks are both set", func() {
			cfg.Bootstrap = true
			cfg.PullRanks = true

			convey.Convey("Then validation passes", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the data directory is empty", func() {
			cfg.DataDir = ""

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the region is empty", func() {
			cfg.Region = ""

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When update_size is zero", func() {
			cfg.UpdateSize = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "update_size")
			})
		})

		convey.Convey("When a batch size is zero", func() {
			cfg.MatchBatchSize = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "batch sizes")
			})
		})
	})
}
