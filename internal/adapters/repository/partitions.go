package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/internal/domain/partition"
	"github.com/okian/rankcrawl/pkg/logger"
)

var matchHeader = []string{"match_id", "rank_tier", "ts"} //nolint:gochecknoglobals // file format

// PartitionPath returns the file holding the partition key.
func (s *FS) PartitionPath(key partition.Key) string {
	return filepath.Join(s.dir, partitionTag+"."+key.String()+csvExt)
}

// AppendPartition appends recs to the partition file of key, creating it if
// needed. Each call adds one gzip member; the header is written only into a
// new, empty file, so repeated appends never duplicate it or touch prior rows.
func (s *FS) AppendPartition(ctx context.Context, key partition.Key, recs []model.MatchRecord) (string, error) {
	if len(recs) == 0 {
		return s.PartitionPath(key), nil
	}
	return s.AppendPartitionSeq(ctx, key, func(yield func(model.MatchRecord, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	})
}

// AppendPartitionSeq is AppendPartition over a stream of records. A yielded
// error aborts the append. On any failure the file is cut back to its size
// before the call, so a torn gzip member never reaches later readers.
func (s *FS) AppendPartitionSeq(ctx context.Context, key partition.Key, recs iter.Seq2[model.MatchRecord, error]) (string, error) {
	path := s.PartitionPath(key)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	var header []string
	if info.Size() == 0 {
		header = matchHeader
	}

	rows := 0
	err = writeCSVGz(f, header, func(cw *csv.Writer) error {
		for r, err := range recs {
			if err != nil {
				return err
			}
			if err := cw.Write(formatMatch(r)); err != nil {
				return fmt.Errorf("write match row: %w", err)
			}
			rows++
		}
		return nil
	})
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		s.rollback(ctx, f, path, info.Size())
		return "", fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		if terr := os.Truncate(path, info.Size()); terr != nil {
			s.log.Error(ctx, "partition left torn", logger.String("path", path), logger.Error(terr))
		}
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	s.log.Debug(ctx, "partition appended", logger.String("path", path), logger.Int("rows", rows))
	return path, nil
}

// rollback truncates a partition to size and closes it. A file that was
// created by the failed call is removed.
func (s *FS) rollback(ctx context.Context, f *os.File, path string, size int64) {
	if err := f.Truncate(size); err != nil {
		s.log.Error(ctx, "partition left torn", logger.String("path", path), logger.Error(err))
	}
	_ = f.Close()
	if size == 0 {
		_ = os.Remove(path)
	}
}

// ReadPartitions streams every row of every partition file, in file name order.
func (s *FS) ReadPartitions(_ context.Context, fn func(model.MatchRecord) error) error {
	paths, err := filepath.Glob(filepath.Join(s.dir, partitionTag+".*"+csvExt))
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		err := readCSVGz(path, matchHeader, func(row []string) error {
			m, err := parseMatch(row)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
			}
			return fn(m)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func formatMatch(m model.MatchRecord) []string {
	return []string{strconv.FormatInt(m.ID, 10), string(m.Tier), strconv.FormatInt(m.TS, 10)}
}

func parseMatch(row []string) (model.MatchRecord, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.MatchRecord{}, fmt.Errorf("match_id: %w", err)
	}
	tier, err := model.ParseTier(row[1])
	if err != nil {
		return model.MatchRecord{}, err
	}
	ts, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return model.MatchRecord{}, fmt.Errorf("ts: %w", err)
	}
	return model.MatchRecord{ID: id, Tier: tier, TS: ts}, nil
}
