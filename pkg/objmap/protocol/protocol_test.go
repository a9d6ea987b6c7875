package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestHelloRoundTrip(t *testing.T) {
	h := Hello{Version: 2, Capabilities: CapOOOReplies | CapPipelining, MaxPipeline: 32}
	got, err := DecodeHello(h.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeHelloRejectsBadMagic(t *testing.T) {
	buf := Hello{Version: 2}.Encode()
	buf[0] = 'X'
	if _, err := DecodeHello(buf); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestHelloAckRoundTrip(t *testing.T) {
	a := HelloAck{Version: 2, Capabilities: CapSegmentedDelivery, MaxPipeline: 16, BackendParallelism: 4}
	got, err := DecodeHelloAck(a.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != a {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, a)
	}
}

func TestNegotiateIntersectsCapabilities(t *testing.T) {
	client := CapOOOReplies | CapPipelining | CapCompression
	server := CapPipelining | CapSegmentedDelivery
	got := Negotiate(client, server)
	if got != CapPipelining {
		t.Fatalf("got %v, want CapPipelining", got)
	}
}

func TestCloseAckRoundTrip(t *testing.T) {
	buf := EncodeCloseAck(7)
	ack, err := DecodeCloseAck(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Outstanding != 7 {
		t.Fatalf("got %d, want 7", ack.Outstanding)
	}
}

func TestRequestV1RoundTrip(t *testing.T) {
	r := RequestV1{Mode: ModeFDPass, URI: "objmap://pool/a.bin"}
	buf, err := r.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRequestV1(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestResponseV1RoundTrip(t *testing.T) {
	r := ResponseV1{
		Status:   StatusOK,
		Metadata: []MetaEntry{MetaSizeEntry(1024), MetaBackendEntry(2)},
		Body:     []byte("hello"),
	}
	buf, err := r.Encode(1024)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeResponseV1(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != r.Status || got.ContentLen != 1024 || !bytes.Equal(got.Body, r.Body) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Metadata) != 2 {
		t.Fatalf("expected 2 metadata entries, got %d", len(got.Metadata))
	}
	size, err := got.Metadata[0].AsUint64()
	if err != nil || size != 1024 {
		t.Fatalf("bad size entry: %v %v", size, err)
	}
}

func TestResponseV1WithoutBody(t *testing.T) {
	r := ResponseV1{Status: StatusNotFound, Metadata: []MetaEntry{MetaErrorEntry("no such object")}}
	buf, err := r.Encode(0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeResponseV1(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != StatusNotFound || len(got.Body) != 0 {
		t.Fatalf("unexpected decode: %+v", got)
	}
	errEntry, ok := FindMetadata(got.Metadata, MetaError)
	if !ok || string(errEntry.Value) != "no such object" {
		t.Fatalf("expected error metadata entry, got %+v", got.Metadata)
	}
}

func TestRequestV2RoundTrip(t *testing.T) {
	r := RequestV2{RequestID: 42, Mode: ModeCopy, URI: "objmap://pool/b.bin"}
	buf, err := r.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRequestV2(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestDecodeRequestV2RejectsWrongTag(t *testing.T) {
	buf, _ := RequestV2{RequestID: 1, URI: "x"}.Encode()
	buf[0] = byte(FrameResponse)
	if _, err := DecodeRequestV2(buf); err != ErrShortFrame {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestResponseV2RoundTrip(t *testing.T) {
	r := ResponseV2{
		RequestID: 99,
		Status:    StatusOK,
		Metadata:  []MetaEntry{MetaMtimeEntry(123456789)},
		Body:      []byte("payload-bytes"),
	}
	buf, err := r.Encode(uint64(len(r.Body)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeResponseV2(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestID != 99 || got.Status != StatusOK || !bytes.Equal(got.Body, r.Body) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	entries := []MetaEntry{
		MetaSizeEntry(42),
		MetaMtimeEntry(99),
		MetaBackendEntry(3),
		MetaPayloadEntry([]byte{0x01, 0x02, 0x03}),
	}
	buf, err := EncodeMetadata(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeMetadata(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Type != entries[i].Type || !bytes.Equal(got[i].Value, entries[i].Value) {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestDecodeMetadataRejectsTruncatedValue(t *testing.T) {
	buf := []byte{byte(MetaSize), 0x00, 0x08, 0x01, 0x02} // declares 8 bytes, supplies 2
	if _, err := DecodeMetadata(buf); err != ErrShortFrame {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestValidateSegmentsRequiresTrailingFIN(t *testing.T) {
	segs := []Segment{
		{Type: SegmentInline, CopyLength: 3, LogicalLength: 3, Inline: []byte("abc")},
	}
	if err := ValidateSegments(segs); err != ErrMissingFIN {
		t.Fatalf("expected ErrMissingFIN, got %v", err)
	}
}

func TestValidateSegmentsRejectsInlineLengthMismatch(t *testing.T) {
	segs := []Segment{
		{Type: SegmentInline, CopyLength: 2, LogicalLength: 3, Inline: []byte("abc"), Flags: SegmentFIN},
	}
	if err := ValidateSegments(segs); err == nil {
		t.Fatal("expected error for copy_length != logical_length")
	}
}

func TestValidateSegmentsRejectsFDSegmentWithCopyLength(t *testing.T) {
	segs := []Segment{
		{Type: SegmentFD, CopyLength: 1, LogicalLength: 10, StorageLength: 10, Flags: SegmentFIN},
	}
	if err := ValidateSegments(segs); !errors.Is(err, ErrFDSegmentHasCopyLength) {
		t.Fatalf("expected ErrFDSegmentHasCopyLength, got %v", err)
	}
}

func TestValidateSegmentsRejectsShortStorage(t *testing.T) {
	segs := []Segment{
		{Type: SegmentFD, LogicalLength: 10, StorageLength: 5, Flags: SegmentFIN},
	}
	if err := ValidateSegments(segs); !errors.Is(err, ErrStorageShort) {
		t.Fatalf("expected ErrStorageShort, got %v", err)
	}
}

func TestValidateSegmentsRejectsReuseWithoutPriorFD(t *testing.T) {
	segs := []Segment{
		{Type: SegmentFD, LogicalLength: 10, StorageLength: 10, Flags: SegmentFIN | SegmentReuseFD},
	}
	if err := ValidateSegments(segs); !errors.Is(err, ErrReuseWithoutPrior) {
		t.Fatalf("expected ErrReuseWithoutPrior, got %v", err)
	}
}

func TestValidateSegmentsAllowsReuseAfterPriorFD(t *testing.T) {
	segs := []Segment{
		{Type: SegmentFD, LogicalLength: 10, StorageOffset: 0, StorageLength: 10},
		{Type: SegmentFD, LogicalLength: 5, StorageOffset: 10, StorageLength: 5, Flags: SegmentFIN | SegmentReuseFD},
	}
	if err := ValidateSegments(segs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSegmentTableRoundTrip(t *testing.T) {
	segs := []Segment{
		{Type: SegmentInline, CopyLength: 5, LogicalLength: 5, Inline: []byte("hello")},
		{Type: SegmentFD, LogicalLength: 20, StorageOffset: 0, StorageLength: 20, Flags: SegmentFIN},
	}
	table, err := EncodeSegmentTable(segs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSegmentTable(table, len(segs))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range segs {
		if decoded[i].Type != segs[i].Type || decoded[i].Flags != segs[i].Flags ||
			decoded[i].LogicalLength != segs[i].LogicalLength {
			t.Fatalf("segment %d mismatch: got %+v, want %+v", i, decoded[i], segs[i])
		}
	}
	inline := EncodeInlinePayloads(segs)
	if !bytes.Equal(inline, []byte("hello")) {
		t.Fatalf("got inline %q, want %q", inline, "hello")
	}
}

func TestSegmentedResponseHeaderRoundTrip(t *testing.T) {
	hdr := SegmentedResponseHeader{
		RequestID: 7,
		Status:    StatusOK,
		Metadata:  []MetaEntry{MetaSizeEntry(25)},
		Segments: []Segment{
			{Type: SegmentInline, CopyLength: 5, LogicalLength: 5, Inline: []byte("hello"), Flags: SegmentFIN},
		},
	}
	buf, err := hdr.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, consumed, err := DecodeSegmentedResponseHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestID != 7 || got.Status != StatusOK || len(got.Segments) != 1 {
		t.Fatalf("mismatch: %+v", got)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed %d, want %d (no trailing inline bytes encoded yet)", consumed, len(buf))
	}
}

func TestValidateSegmentsRejectsTooMany(t *testing.T) {
	segs := make([]Segment, MaxSegments+1)
	for i := range segs {
		segs[i] = Segment{Type: SegmentInline, CopyLength: 0, LogicalLength: 0}
	}
	segs[len(segs)-1].Flags = SegmentFIN
	if err := ValidateSegments(segs); err != ErrTooManySegments {
		t.Fatalf("expected ErrTooManySegments, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	if StatusOK.String() != "OK" {
		t.Fatalf("got %q, want OK", StatusOK.String())
	}
	if Status(99).String() == "" {
		t.Fatal("expected non-empty fallback string")
	}
}
