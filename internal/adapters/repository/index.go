package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/okian/rankcrawl/internal/domain/dedupe"
)

// LoadIndex decodes the newest membership index snapshot. It returns
// ErrNotFound when none exists and ErrCorrupt when the newest one cannot be
// decoded; an unreadable index must never be replaced by an empty one.
func (s *FS) LoadIndex(_ context.Context) (*dedupe.Index, error) {
	path, err := s.latest(indexTag, indexExt)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	x, err := dedupe.UnmarshalSnapshot(raw)
	if err != nil {
		if errors.Is(err, dedupe.ErrCorruptSnapshot) {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
		}
		return nil, err
	}
	return x, nil
}

// WriteIndex writes x to a new snapshot.
func (s *FS) WriteIndex(ctx context.Context, x *dedupe.Index) (string, error) {
	raw, err := x.MarshalSnapshot()
	if err != nil {
		return "", fmt.Errorf("encode index: %w", err)
	}
	path := s.stampedPath(indexTag, indexExt)
	err = s.writeAtomic(ctx, path, func(w io.Writer) error {
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		if _, err := io.Copy(zw, bytes.NewReader(raw)); err != nil {
			_ = zw.Close()
			return fmt.Errorf("compress index: %w", err)
		}
		return zw.Close()
	})
	if err != nil {
		return "", err
	}
	return path, nil
}
