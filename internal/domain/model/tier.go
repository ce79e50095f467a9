package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTier is returned by ParseTier for values outside the ladder.
var ErrUnknownTier = errors.New("unknown tier")

// Tier is a ranked ladder band. The empty Tier means "unknown".
type Tier string

const (
	TierUnknown     Tier = ""
	TierChallenger  Tier = "CHALLENGER"
	TierGrandmaster Tier = "GRANDMASTER"
	TierMaster      Tier = "MASTER"
	TierDiamond     Tier = "DIAMOND"
	TierPlatinum    Tier = "PLATINUM"
	TierGold        Tier = "GOLD"
	TierSilver      Tier = "SILVER"
	TierBronze      Tier = "BRONZE"
	TierIron        Tier = "IRON"
)

// Tiers lists every defined tier, best first.
var Tiers = []Tier{ //nolint:gochecknoglobals // fixed ladder
	TierChallenger, TierGrandmaster, TierMaster,
	TierDiamond, TierPlatinum, TierGold,
	TierSilver, TierBronze, TierIron,
}

// Ordinals are spaced the way the ladder spaces them: the apex tiers sit
// closer together than the divisioned tiers below them. Smaller is better.
var tierOrdinals = map[Tier]int{ //nolint:gochecknoglobals // fixed ladder
	TierChallenger:  0,
	TierGrandmaster: 20,
	TierMaster:      40,
	TierDiamond:     80,
	TierPlatinum:    100,
	TierGold:        120,
	TierSilver:      140,
	TierBronze:      160,
	TierIron:        180,
}

// Ordinal returns the tier's rank number and whether the tier is defined.
func (t Tier) Ordinal() (int, bool) {
	o, ok := tierOrdinals[t]
	return o, ok
}

// Known reports whether t is one of the defined tiers.
func (t Tier) Known() bool {
	_, ok := tierOrdinals[t]
	return ok
}

// Apex reports whether the tier has a single division.
func (t Tier) Apex() bool {
	return t == TierChallenger || t == TierGrandmaster || t == TierMaster
}

// Divisions returns the divisions paginated for the tier.
func (t Tier) Divisions() []Division {
	if t.Apex() {
		return []Division{DivisionI}
	}
	return []Division{DivisionI, DivisionII, DivisionIII, DivisionIV}
}

// ParseTier parses a tier name. An empty string yields TierUnknown.
func ParseTier(s string) (Tier, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return TierUnknown, nil
	}
	t := Tier(s)
	if !t.Known() {
		return TierUnknown, fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// Division is a sub-band within a tier.
type Division string

const (
	DivisionI   Division = "I"
	DivisionII  Division = "II"
	DivisionIII Division = "III"
	DivisionIV  Division = "IV"
)

// Bracket is one (tier, division) pair of the ranked ladder.
type Bracket struct {
	Tier     Tier
	Division Division
}

// Brackets enumerates every bracket of the ladder, best first.
func Brackets() []Bracket {
	out := make([]Bracket, 0, len(Tiers)*4)
	for _, t := range Tiers {
		for _, d := range t.Divisions() {
			out = append(out, Bracket{Tier: t, Division: d})
		}
	}
	return out
}
