package dedupe

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec config

// snapshot is the persisted form: segment base id -> little-endian bitmap.
type snapshot struct {
	Len      int               `json:"len"`
	Segments map[string]string `json:"segments"`
}

// MarshalSnapshot encodes the index. Empty segments are not written.
func (x *Index) MarshalSnapshot() ([]byte, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	snap := snapshot{Len: x.n, Segments: make(map[string]string, len(x.segments))}
	buf := make([]byte, segmentWords*8)
	for segNo, s := range x.segments {
		if s.count() == 0 {
			continue
		}
		for i, w := range s {
			binary.LittleEndian.PutUint64(buf[i*8:], w)
		}
		base := strconv.FormatUint(segNo*SegmentBits, 10)
		snap.Segments[base] = base64.StdEncoding.EncodeToString(buf)
	}
	return json.Marshal(&snap)
}

// UnmarshalSnapshot decodes data produced by MarshalSnapshot. Any
// inconsistency is reported as ErrCorruptSnapshot.
func UnmarshalSnapshot(data []byte) (*Index, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	x := New()
	for key, enc := range snap.Segments {
		base, err := strconv.ParseUint(key, 10, 64)
		if err != nil || base%SegmentBits != 0 {
			return nil, fmt.Errorf("%w: bad segment base %q", ErrCorruptSnapshot, key)
		}
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil || len(raw) != segmentWords*8 {
			return nil, fmt.Errorf("%w: bad bitmap for segment %d", ErrCorruptSnapshot, base)
		}
		s := new(segment)
		for i := range s {
			s[i] = binary.LittleEndian.Uint64(raw[i*8:])
		}
		x.segments[base/SegmentBits] = s
		x.n += s.count()
	}
	if x.n != snap.Len {
		return nil, fmt.Errorf("%w: count %d does not match %d stored ids", ErrCorruptSnapshot, snap.Len, x.n)
	}
	return x, nil
}
