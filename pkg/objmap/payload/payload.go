// Package payload describes the variant metadata an object may carry:
// the set of alternate encodings a backend can deliver for one entry,
// and the capability bits a session uses to pick a delivery path.
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxVariants bounds the number of variants one descriptor may carry.
const MaxVariants = 8

// SchemaVersion is the fixed wire/on-disk version of PackedDescriptor.
// Readers reject any other value (invariant 7).
const SchemaVersion uint8 = 1

// Encoding identifies one body variant's compression/transform.
type Encoding uint8

const (
	EncodingIdentity Encoding = iota
	EncodingGzip
	EncodingBrotli
	EncodingZstd
)

func (e Encoding) String() string {
	switch e {
	case EncodingIdentity:
		return "identity"
	case EncodingGzip:
		return "gzip"
	case EncodingBrotli:
		return "brotli"
	case EncodingZstd:
		return "zstd"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// Capability bits describe what a variant supports at delivery time.
type Capability uint16

const (
	CapRangeReady Capability = 1 << iota
	CapZeroCopy
	CapTLSOffload
)

// VariantDescriptor describes one available body encoding for an object.
type VariantDescriptor struct {
	VariantID       uint8
	Encoding        Encoding
	LogicalLength   uint64
	StorageLength   uint64
	RangeGranularity uint32
	Capabilities    Capability
	IsPrimary       bool
}

// Descriptor is the set of variants available for one entry.
type Descriptor struct {
	Variants []VariantDescriptor
}

var (
	// ErrNoVariants is returned when a descriptor has zero variants.
	ErrNoVariants = errors.New("payload: descriptor must carry at least one variant")
	// ErrTooManyVariants is returned when a descriptor exceeds MaxVariants.
	ErrTooManyVariants = fmt.Errorf("payload: descriptor cannot carry more than %d variants", MaxVariants)
	// ErrNoPrimary is returned when no variant is marked primary.
	ErrNoPrimary = errors.New("payload: exactly one variant must be primary")
	// ErrMultiplePrimary is returned when more than one variant is marked primary.
	ErrMultiplePrimary = errors.New("payload: more than one variant marked primary")
	// ErrEncodingMismatch reports a variant whose encoding and capability bits disagree.
	// Validate does not return it: Capability has no per-encoding bits to compare with Encoding.
	ErrEncodingMismatch = errors.New("payload: variant encoding does not match its capability bits")
	// ErrRangeGranularity is returned when CapRangeReady is set without a positive granularity.
	ErrRangeGranularity = errors.New("payload: range-ready variant must declare a positive range granularity")
	// ErrStorageLength is returned when an identity variant's storage length is smaller than its logical length.
	ErrStorageLength = errors.New("payload: identity variant storage_length must be >= logical_length")
	// ErrSchemaVersion is returned by Unpack when the packed version does not match SchemaVersion.
	ErrSchemaVersion = errors.New("payload: schema version mismatch")
)

// Validate enforces the invariants: exactly one primary
// variant, a variant count within bounds, a positive range granularity
// on CapRangeReady variants, and storage_length >= logical_length on
// identity variants. It does not check encoding against capability bits.
func (d Descriptor) Validate() error {
	if len(d.Variants) == 0 {
		return ErrNoVariants
	}
	if len(d.Variants) > MaxVariants {
		return ErrTooManyVariants
	}

	primaries := 0
	for _, v := range d.Variants {
		if v.IsPrimary {
			primaries++
		}
		if v.Capabilities&CapRangeReady != 0 && v.RangeGranularity == 0 {
			return ErrRangeGranularity
		}
		if v.Encoding == EncodingIdentity && v.StorageLength < v.LogicalLength {
			return ErrStorageLength
		}
	}
	if primaries == 0 {
		return ErrNoPrimary
	}
	if primaries > 1 {
		return ErrMultiplePrimary
	}
	return nil
}

// Primary returns the variant marked primary, and true if one was found.
// Callers should only rely on this after Validate has succeeded.
func (d Descriptor) Primary() (VariantDescriptor, bool) {
	for _, v := range d.Variants {
		if v.IsPrimary {
			return v, true
		}
	}
	return VariantDescriptor{}, false
}

// IdentityOnly builds a single-variant descriptor for a plain, uncompressed
// body of the given size. update_size seeds this when an entry has no
// descriptor yet and its size becomes non-zero.
func IdentityOnly(size uint64) Descriptor {
	return Descriptor{
		Variants: []VariantDescriptor{
			{
				VariantID:     0,
				Encoding:      EncodingIdentity,
				LogicalLength: size,
				StorageLength: size,
				IsPrimary:     true,
			},
		},
	}
}

// packedVariantSize is the fixed, little-endian on-disk/wire layout of one
// variant: variant_id(1) | encoding(1) | is_primary(1) | _pad(1) |
// logical_length(8) | storage_length(8) | range_granularity(4) |
// capabilities(2) | _pad(2).
const packedVariantSize = 1 + 1 + 1 + 1 + 8 + 8 + 4 + 2 + 2

// packedHeaderSize is version(1) | variant_count(1) | _pad(2).
const packedHeaderSize = 1 + 1 + 2

// PackedSize returns the byte length of Pack's output for a descriptor
// with the given variant count, for callers that need to size buffers
// ahead of time (e.g. the PAYLOAD metadata TLV).
func PackedSize(variantCount int) int {
	return packedHeaderSize + variantCount*packedVariantSize
}

// Pack encodes the descriptor into the fixed-size little-endian layout
// used by the on-disk index records and the PAYLOAD metadata TLV. The
// caller must call Validate first; Pack does not re-validate.
func (d Descriptor) Pack() []byte {
	buf := make([]byte, PackedSize(len(d.Variants)))
	buf[0] = SchemaVersion
	buf[1] = uint8(len(d.Variants))

	off := packedHeaderSize
	for _, v := range d.Variants {
		buf[off] = v.VariantID
		buf[off+1] = uint8(v.Encoding)
		if v.IsPrimary {
			buf[off+2] = 1
		}
		binary.LittleEndian.PutUint64(buf[off+4:], v.LogicalLength)
		binary.LittleEndian.PutUint64(buf[off+12:], v.StorageLength)
		binary.LittleEndian.PutUint32(buf[off+20:], v.RangeGranularity)
		binary.LittleEndian.PutUint16(buf[off+24:], uint16(v.Capabilities))
		off += packedVariantSize
	}
	return buf
}

// Unpack decodes a descriptor previously produced by Pack. It rejects a
// mismatching schema version (invariant 7) and a truncated buffer.
func Unpack(buf []byte) (Descriptor, error) {
	if len(buf) < packedHeaderSize {
		return Descriptor{}, fmt.Errorf("payload: packed descriptor too short: %d bytes", len(buf))
	}
	if buf[0] != SchemaVersion {
		return Descriptor{}, fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, buf[0], SchemaVersion)
	}

	count := int(buf[1])
	want := PackedSize(count)
	if len(buf) < want {
		return Descriptor{}, fmt.Errorf("payload: packed descriptor truncated: have %d bytes, want %d", len(buf), want)
	}

	d := Descriptor{Variants: make([]VariantDescriptor, count)}
	off := packedHeaderSize
	for i := 0; i < count; i++ {
		d.Variants[i] = VariantDescriptor{
			VariantID:        buf[off],
			Encoding:         Encoding(buf[off+1]),
			IsPrimary:        buf[off+2] != 0,
			LogicalLength:    binary.LittleEndian.Uint64(buf[off+4:]),
			StorageLength:    binary.LittleEndian.Uint64(buf[off+12:]),
			RangeGranularity: binary.LittleEndian.Uint32(buf[off+20:]),
			Capabilities:     Capability(binary.LittleEndian.Uint16(buf[off+24:])),
		}
		off += packedVariantSize
	}
	return d, nil
}
