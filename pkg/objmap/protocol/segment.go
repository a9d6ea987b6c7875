package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SegmentType identifies how a segment's bytes are delivered.
type SegmentType byte

const (
	SegmentInline SegmentType = 1
	SegmentFD     SegmentType = 2
	SegmentSplice SegmentType = 3
)

// SegmentFlags are bit flags on a segment header.
type SegmentFlags byte

const (
	SegmentFIN     SegmentFlags = 1 << 0
	SegmentReuseFD SegmentFlags = 1 << 1
)

// MaxSegments bounds a single segmented response; chosen generously
// since each header is only 32 bytes and real responses use at most a
// handful.
const MaxSegments = 64

// Segment is one entry in a segmented response's table: // fixed-size header `type(1) | flags(1) | _pad(2) | copy_length(4) |
// logical_length(8) | storage_offset(8) | storage_length(8)`.
type Segment struct {
	Type          SegmentType
	Flags         SegmentFlags
	CopyLength    uint32
	LogicalLength uint64
	StorageOffset uint64
	StorageLength uint64

	// Inline carries the payload bytes for a SegmentInline entry; unused
	// for FD/SPLICE segments, whose bytes travel as an ancillary FD.
	Inline []byte
}

const segmentFixedSize = 1 + 1 + 2 + 4 + 8 + 8 + 8 // = 32

var (
	// ErrTooManySegments is returned when encoding more than MaxSegments.
	ErrTooManySegments = errors.New("protocol: too many segments")
	// ErrNoSegments is returned when encoding zero segments.
	ErrNoSegments = errors.New("protocol: segmented response needs at least one segment")
	// ErrMissingFIN is returned when the last segment lacks SegmentFIN.
	ErrMissingFIN = errors.New("protocol: last segment missing FIN")
	// ErrInlineLengthMismatch is returned when an INLINE segment's
	// copy_length doesn't equal logical_length (constraint).
	ErrInlineLengthMismatch = errors.New("protocol: INLINE segment copy_length != logical_length")
	// ErrFDSegmentHasCopyLength is returned when an FD/SPLICE segment's
	// copy_length is non-zero.
	ErrFDSegmentHasCopyLength = errors.New("protocol: FD/SPLICE segment must have copy_length 0")
	// ErrStorageShort is returned when an FD/SPLICE segment's
	// storage_length is less than logical_length.
	ErrStorageShort = errors.New("protocol: storage_length < logical_length")
	// ErrReuseWithoutPrior is returned when REUSE_FD is set on a segment
	// with no prior FD segment in the table.
	ErrReuseWithoutPrior = errors.New("protocol: REUSE_FD set with no prior FD")
)

// ValidateSegments enforces table-level constraints: the
// last segment carries FIN, INLINE segments have copy_length ==
// logical_length, FD/SPLICE segments have copy_length == 0 and
// storage_length >= logical_length, and REUSE_FD never appears before
// some earlier segment actually carried an FD.
func ValidateSegments(segs []Segment) error {
	if len(segs) == 0 {
		return ErrNoSegments
	}
	if len(segs) > MaxSegments {
		return ErrTooManySegments
	}
	sawFD := false
	for i, s := range segs {
		switch s.Type {
		case SegmentInline:
			if s.CopyLength != uint32(s.LogicalLength) {
				return fmt.Errorf("%w: segment %d", ErrInlineLengthMismatch, i)
			}
		case SegmentFD, SegmentSplice:
			if s.CopyLength != 0 {
				return fmt.Errorf("%w: segment %d", ErrFDSegmentHasCopyLength, i)
			}
			if s.StorageLength < s.LogicalLength {
				return fmt.Errorf("%w: segment %d", ErrStorageShort, i)
			}
			if s.Flags&SegmentReuseFD != 0 && !sawFD {
				return fmt.Errorf("%w: segment %d", ErrReuseWithoutPrior, i)
			}
			if s.Flags&SegmentReuseFD == 0 {
				sawFD = true
			}
		default:
			return fmt.Errorf("protocol: unknown segment type %d at %d", s.Type, i)
		}
		if i == len(segs)-1 && s.Flags&SegmentFIN == 0 {
			return ErrMissingFIN
		}
	}
	return nil
}

// EncodeSegmentTable serialises just the fixed-size headers, in order
// (delivery order: "segment table, then all inline payloads
// ... then all non-reused FDs"). Inline payload bytes are NOT included
// here; callers append them separately via EncodeInlinePayloads.
func EncodeSegmentTable(segs []Segment) ([]byte, error) {
	if err := ValidateSegments(segs); err != nil {
		return nil, err
	}
	buf := make([]byte, segmentFixedSize*len(segs))
	for i, s := range segs {
		off := i * segmentFixedSize
		buf[off] = byte(s.Type)
		buf[off+1] = byte(s.Flags)
		// buf[off+2:off+4] left zero (_pad)
		binary.BigEndian.PutUint32(buf[off+4:off+8], s.CopyLength)
		binary.BigEndian.PutUint64(buf[off+8:off+16], s.LogicalLength)
		binary.BigEndian.PutUint64(buf[off+16:off+24], s.StorageOffset)
		binary.BigEndian.PutUint64(buf[off+24:off+32], s.StorageLength)
	}
	return buf, nil
}

// EncodeInlinePayloads concatenates every INLINE segment's bytes, in
// table order, for the second stage of delivery order.
func EncodeInlinePayloads(segs []Segment) []byte {
	var out []byte
	for _, s := range segs {
		if s.Type == SegmentInline {
			out = append(out, s.Inline...)
		}
	}
	return out
}

// DecodeSegmentTable parses count fixed-size segment headers from buf.
// Inline payload bytes must be filled in by the caller afterward, by
// reading len(logical_length) bytes per INLINE segment in table order
// and assigning them to Segment.Inline.
func DecodeSegmentTable(buf []byte, count int) ([]Segment, error) {
	if count <= 0 || count > MaxSegments {
		return nil, ErrTooManySegments
	}
	need := segmentFixedSize * count
	if len(buf) < need {
		return nil, ErrShortFrame
	}
	segs := make([]Segment, count)
	for i := 0; i < count; i++ {
		off := i * segmentFixedSize
		segs[i] = Segment{
			Type:          SegmentType(buf[off]),
			Flags:         SegmentFlags(buf[off+1]),
			CopyLength:    binary.BigEndian.Uint32(buf[off+4 : off+8]),
			LogicalLength: binary.BigEndian.Uint64(buf[off+8 : off+16]),
			StorageOffset: binary.BigEndian.Uint64(buf[off+16 : off+24]),
			StorageLength: binary.BigEndian.Uint64(buf[off+24 : off+32]),
		}
	}
	return segs, nil
}
