// Package repository persists crawler state as files under one directory.
//
// Layout:
//
//	summoner.<stamp>.csv.gz           roster snapshot, newest wins
//	league.<stamp>.csv.gz             league reference, rewritten every cycle
//	match_hbs.<stamp>.json.zst        membership index snapshot, newest wins
//	matches.<major.minor>.<YYYY>-W<WW>.csv.gz   append-only match partitions
//
// <stamp> is UTC YYYY-MM-DDTHH-MM-SS so lexical order is chronological.
package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/okian/rankcrawl/pkg/logger"
)

const (
	rosterTag    = "summoner"
	leagueTag    = "league"
	indexTag     = "match_hbs"
	partitionTag = "matches"

	csvExt   = ".csv.gz"
	indexExt = ".json.zst"

	stampLayout = "2006-01-02T15-04-05"
)

// FS stores snapshots and partitions in a single directory.
type FS struct {
	dir string
	now func() time.Time
	log logger.Logger
}

// NewFS returns a store rooted at dir. The directory is created on first write.
func NewFS(dir string, opts ...Option) *FS {
	s := &FS{dir: dir, now: time.Now, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *FS) Dir() string { return s.dir }

func (s *FS) stampedPath(tag, ext string) string {
	return filepath.Join(s.dir, tag+"."+s.now().UTC().Format(stampLayout)+ext)
}

// latest returns the newest file named <tag>.<stamp><ext>.
func (s *FS) latest(tag, ext string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, tag+".*"+ext))
	if err != nil {
		return "", fmt.Errorf("list %s snapshots: %w", tag, err)
	}
	var stamped []string
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), tag+"."), ext)
		if _, err := time.Parse(stampLayout, stamp); err == nil {
			stamped = append(stamped, m)
		}
	}
	if len(stamped) == 0 {
		return "", fmt.Errorf("%w: no %s snapshot in %s", ErrNotFound, tag, s.dir)
	}
	sort.Strings(stamped)
	return stamped[len(stamped)-1], nil
}

// writeAtomic writes a file through a temp file and rename, so a failed
// write never leaves a truncated snapshot that would win the next load.
func (s *FS) writeAtomic(ctx context.Context, path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	s.log.Debug(ctx, "snapshot written", logger.String("path", path))
	return nil
}

// writeCSVGz writes header and rows produced by rows as one gzip member.
func writeCSVGz(w io.Writer, header []string, rows func(*csv.Writer) error) error {
	zw := gzip.NewWriter(w)
	cw := csv.NewWriter(zw)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := rows(cw); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}

// readCSVGz streams the rows of a gzip CSV file after checking its header.
// Parse failures are reported as ErrCorrupt.
func readCSVGz(path string, header []string, row func([]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	defer func() { _ = zr.Close() }()

	cr := csv.NewReader(zr)
	cr.FieldsPerRecord = len(header)
	cr.ReuseRecord = true

	got, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	for i := range header {
		if got[i] != header[i] {
			return fmt.Errorf("%w: %s: unexpected header %v", ErrCorrupt, path, got)
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
		}
		if err := row(rec); err != nil {
			return err
		}
	}
}
