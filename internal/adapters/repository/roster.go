package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/okian/rankcrawl/internal/domain/model"
)

var rosterHeader = []string{ //nolint:gochecknoglobals // file format
	"encrypted_summoner_id", "encrypted_account_id", "league_id", "rank_tier", "games_per_day", "ts",
}

// LatestRoster returns the path of the newest roster snapshot, or ErrNotFound.
func (s *FS) LatestRoster(_ context.Context) (string, error) {
	return s.latest(rosterTag, csvExt)
}

// ReadRoster streams the records of the roster snapshot at path.
func (s *FS) ReadRoster(_ context.Context, path string, fn func(model.PlayerRecord) error) error {
	return readCSVGz(path, rosterHeader, func(row []string) error {
		p, err := parsePlayer(row)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
		}
		return fn(p)
	})
}

// WriteRoster writes records, in the order given, to a new roster snapshot.
// An error yielded by records aborts the write and no snapshot is created.
func (s *FS) WriteRoster(ctx context.Context, records iter.Seq2[model.PlayerRecord, error]) (string, int, error) {
	path := s.stampedPath(rosterTag, csvExt)
	n := 0
	err := s.writeAtomic(ctx, path, func(w io.Writer) error {
		return writeCSVGz(w, rosterHeader, func(cw *csv.Writer) error {
			for p, err := range records {
				if err != nil {
					return err
				}
				if err := cw.Write(formatPlayer(p)); err != nil {
					return fmt.Errorf("write roster row: %w", err)
				}
				n++
			}
			return nil
		})
	})
	if err != nil {
		return "", 0, err
	}
	return path, n, nil
}

func parsePlayer(row []string) (model.PlayerRecord, error) {
	p := model.PlayerRecord{ID: row[0], AccountID: row[1], LeagueID: row[2]}
	if p.ID == "" {
		return p, fmt.Errorf("empty player id")
	}
	tier, err := model.ParseTier(row[3])
	if err != nil {
		return p, err
	}
	p.Tier = tier
	if row[4] != "" {
		gpd, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return p, fmt.Errorf("games_per_day: %w", err)
		}
		p.GamesPerDay = &gpd
	}
	if row[5] != "" {
		ts, err := strconv.ParseInt(row[5], 10, 64)
		if err != nil {
			return p, fmt.Errorf("ts: %w", err)
		}
		p.TS = ts
	}
	return p, nil
}

func formatPlayer(p model.PlayerRecord) []string {
	gpd, ts := "", ""
	if p.GamesPerDay != nil {
		gpd = strconv.FormatFloat(*p.GamesPerDay, 'g', -1, 64)
	}
	if p.TS > 0 {
		ts = strconv.FormatInt(p.TS, 10)
	}
	return []string{p.ID, p.AccountID, p.LeagueID, string(p.Tier), gpd, ts}
}
