package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/okian/rankcrawl/internal/domain/model"
)

var leagueHeader = []string{"tier", "league_id"} //nolint:gochecknoglobals // file format

// WriteLeagues writes entries, in the order given, to a new league reference file.
func (s *FS) WriteLeagues(ctx context.Context, entries []model.LeagueEntry) (string, error) {
	path := s.stampedPath(leagueTag, csvExt)
	err := s.writeAtomic(ctx, path, func(w io.Writer) error {
		return writeCSVGz(w, leagueHeader, func(cw *csv.Writer) error {
			for _, e := range entries {
				if err := cw.Write([]string{string(e.Tier), e.LeagueID}); err != nil {
					return fmt.Errorf("write league row: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return path, nil
}
