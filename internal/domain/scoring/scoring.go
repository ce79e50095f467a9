// Package scoring derives a match's representative tier from its participants.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/rankcrawl/internal/domain/model"
)

// AverageTier maps each known tier to its ordinal, averages them, truncates
// the mean and returns the nearest defined tier. Ties go to the smaller
// ordinal (the better tier). With no known tiers the result is TierUnknown.
func AverageTier(tiers []model.Tier) model.Tier {
	sum, cnt := 0, 0
	for _, t := range tiers {
		if o, ok := t.Ordinal(); ok {
			sum += o
			cnt++
		}
	}
	if cnt == 0 {
		return model.TierUnknown
	}
	avg := sum / cnt

	best, bestDist := model.TierUnknown, math.MaxInt
	for _, t := range model.Tiers {
		o, _ := t.Ordinal()
		d := avg - o
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}

// TierLookup returns the last known tier of a ladder player.
type TierLookup func(playerID string) (model.Tier, bool)

// Scorer turns fetched match details into match records.
type Scorer interface {
	// Score computes the match record, honoring ctx for cancellation.
	Score(ctx context.Context, in model.MatchDetail) (model.MatchRecord, error)
}

// Option applies a configuration option to the RosterScorer.
type Option func(*RosterScorer)

// WithTierLookup sets the source of participant tiers.
func WithTierLookup(lookup TierLookup) Option {
	return func(s *RosterScorer) {
		if lookup != nil {
			s.lookup = lookup
		}
	}
}

// RosterScorer implements Scorer with participant tiers from the roster.
type RosterScorer struct {
	lookup TierLookup
}

// NewRosterScorer creates a scorer. Without WithTierLookup every participant
// is unknown and every match scores as TierUnknown.
func NewRosterScorer(opts ...Option) *RosterScorer {
	s := &RosterScorer{
		lookup: func(string) (model.Tier, bool) { return model.TierUnknown, false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the representative tier of in.
func (s *RosterScorer) Score(ctx context.Context, in model.MatchDetail) (model.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.MatchRecord{}, fmt.Errorf("context cancelled: %w", err)
	}
	tiers := make([]model.Tier, 0, len(in.Participants))
	for _, p := range in.Participants {
		if t, ok := s.lookup(p); ok {
			tiers = append(tiers, t)
		}
	}
	return model.MatchRecord{
		ID:      in.ID,
		Tier:    AverageTier(tiers),
		TS:      in.TS,
		Version: in.Version,
	}, nil
}

// LadderLookup reads participant tiers from ladder entries keyed by player id.
func LadderLookup(entries map[string]model.LadderEntry) TierLookup {
	return func(playerID string) (model.Tier, bool) {
		e, ok := entries[playerID]
		return e.Tier, ok && e.Tier.Known()
	}
}
