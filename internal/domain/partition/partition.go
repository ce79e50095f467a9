// Package partition groups match records by game version and ISO week.
package partition

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/okian/rankcrawl/internal/domain/model"
)

// ErrBadVersion is returned when a match version string cannot be parsed.
var ErrBadVersion = errors.New("bad game version")

// Key identifies one partition file. A record's key depends on its own
// version and creation time only.
type Key struct {
	Major, Minor uint64
	Year, Week   int // ISO-8601 year and week
}

// String renders the key as used in partition file names, e.g. "10.1.2020-W03".
func (k Key) String() string {
	return fmt.Sprintf("%d.%d.%04d-W%02d", k.Major, k.Minor, k.Year, k.Week)
}

// Version returns the "major.minor" part of the key.
func (k Key) Version() string {
	return fmt.Sprintf("%d.%d", k.Major, k.Minor)
}

// KeyFor derives the partition key of rec.
func KeyFor(rec model.MatchRecord) (Key, error) {
	v, err := parseVersion(rec.Version)
	if err != nil {
		return Key{}, err
	}
	year, week := time.UnixMilli(rec.TS).UTC().ISOWeek()
	return Key{Major: v.Major(), Minor: v.Minor(), Year: year, Week: week}, nil
}

// parseVersion reads the first three dot-separated components. Game versions
// carry a fourth build component that semver does not accept.
func parseVersion(s string) (*semver.Version, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(padVersion(parts), "."))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadVersion, s, err)
	}
	return v, nil
}

func padVersion(parts []string) []string {
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return parts
}

// Group buckets records by key. Records whose key cannot be derived are
// returned separately.
func Group(recs []model.MatchRecord) (map[Key][]model.MatchRecord, []model.MatchRecord) {
	groups := make(map[Key][]model.MatchRecord)
	var bad []model.MatchRecord
	for _, r := range recs {
		k, err := KeyFor(r)
		if err != nil {
			bad = append(bad, r)
			continue
		}
		groups[k] = append(groups[k], r)
	}
	return groups, bad
}
