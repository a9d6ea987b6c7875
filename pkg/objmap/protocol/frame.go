package protocol

import (
	"encoding/binary"
	"fmt"
)

// RequestV1 is the legacy request frame: mode(1) | uri_len(2 BE) | uri.
type RequestV1 struct {
	Mode Mode
	URI  string
}

// Encode serialises a V1 request.
func (r RequestV1) Encode() ([]byte, error) {
	if len(r.URI) > 0xFFFF {
		return nil, fmt.Errorf("protocol: uri too long (%d bytes)", len(r.URI))
	}
	buf := make([]byte, 3+len(r.URI))
	buf[0] = byte(r.Mode)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(r.URI)))
	copy(buf[3:], r.URI)
	return buf, nil
}

// DecodeRequestV1 parses a V1 request frame.
func DecodeRequestV1(buf []byte) (RequestV1, error) {
	if len(buf) < 3 {
		return RequestV1{}, ErrShortFrame
	}
	uriLen := int(binary.BigEndian.Uint16(buf[1:3]))
	if len(buf) < 3+uriLen {
		return RequestV1{}, ErrShortFrame
	}
	return RequestV1{Mode: Mode(buf[0]), URI: string(buf[3 : 3+uriLen])}, nil
}

// ResponseV1 is the legacy response frame: status(1) | content_len(8 BE)
// | metadata_len(2 BE) | metadata[metadata_len] | body.
type ResponseV1 struct {
	Status   Status
	Metadata []MetaEntry
	Body     []byte
}

// Encode serialises a V1 response. Body is the inline payload bytes;
// callers sending a body via FD instead set Body to nil and transmit it
// out of band, with content_len still reflecting the true size.
func (r ResponseV1) Encode(contentLen uint64) ([]byte, error) {
	meta, err := EncodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0xFFFF {
		return nil, fmt.Errorf("protocol: metadata too long (%d bytes)", len(meta))
	}
	buf := make([]byte, 1+8+2+len(meta)+len(r.Body))
	buf[0] = byte(r.Status)
	binary.BigEndian.PutUint64(buf[1:9], contentLen)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(meta)))
	copy(buf[11:11+len(meta)], meta)
	copy(buf[11+len(meta):], r.Body)
	return buf, nil
}

// DecodedResponseV1 is a parsed V1 response, with contentLen split out
// since it may exceed len(Body) when the body travels via FD.
type DecodedResponseV1 struct {
	Status     Status
	ContentLen uint64
	Metadata   []MetaEntry
	Body       []byte
}

// DecodeResponseV1 parses a V1 response frame, where buf's trailing
// bytes (after the metadata block) are the inline body, if any.
func DecodeResponseV1(buf []byte) (DecodedResponseV1, error) {
	if len(buf) < 11 {
		return DecodedResponseV1{}, ErrShortFrame
	}
	status := Status(buf[0])
	contentLen := binary.BigEndian.Uint64(buf[1:9])
	metaLen := int(binary.BigEndian.Uint16(buf[9:11]))
	if len(buf) < 11+metaLen {
		return DecodedResponseV1{}, ErrShortFrame
	}
	meta, err := DecodeMetadata(buf[11 : 11+metaLen])
	if err != nil {
		return DecodedResponseV1{}, err
	}
	body := buf[11+metaLen:]
	return DecodedResponseV1{Status: status, ContentLen: contentLen, Metadata: meta, Body: body}, nil
}

// RequestV2 is a V2 REQUEST frame: tag(1)=FrameRequest | request_id(4 BE)
// | mode(1) | uri_len(2 BE) | uri. Negotiated V2 connections tag every
// frame and carry a request_id so replies may arrive out of order
// (CapOOOReplies).
type RequestV2 struct {
	RequestID uint32
	Mode      Mode
	URI       string
}

// Encode serialises a V2 request frame, tag byte included.
func (r RequestV2) Encode() ([]byte, error) {
	if len(r.URI) > 0xFFFF {
		return nil, fmt.Errorf("protocol: uri too long (%d bytes)", len(r.URI))
	}
	buf := make([]byte, 1+4+1+2+len(r.URI))
	buf[0] = byte(FrameRequest)
	binary.BigEndian.PutUint32(buf[1:5], r.RequestID)
	buf[5] = byte(r.Mode)
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(r.URI)))
	copy(buf[8:], r.URI)
	return buf, nil
}

// DecodeRequestV2 parses a V2 request frame, tag byte included.
func DecodeRequestV2(buf []byte) (RequestV2, error) {
	if len(buf) < 8 || FrameTag(buf[0]) != FrameRequest {
		return RequestV2{}, ErrShortFrame
	}
	uriLen := int(binary.BigEndian.Uint16(buf[6:8]))
	if len(buf) < 8+uriLen {
		return RequestV2{}, ErrShortFrame
	}
	return RequestV2{
		RequestID: binary.BigEndian.Uint32(buf[1:5]),
		Mode:      Mode(buf[5]),
		URI:       string(buf[8 : 8+uriLen]),
	}, nil
}

// ResponseV2 is a V2 RESPONSE frame: tag(1)=FrameResponse | request_id(4 BE)
// | status(1) | content_len(8 BE) | metadata_len(2 BE) | metadata | body.
// A SEGMENTED_RESPONSE frame reuses this prefix without content_len, up
// through metadata, followed by a segment_count(1) and segment table
// instead of an inline body; see SegmentedResponseHeader.Encode.
type ResponseV2 struct {
	RequestID uint32
	Status    Status
	Metadata  []MetaEntry
	Body      []byte
}

// Encode serialises a V2 response frame, tag byte included.
func (r ResponseV2) Encode(contentLen uint64) ([]byte, error) {
	meta, err := EncodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0xFFFF {
		return nil, fmt.Errorf("protocol: metadata too long (%d bytes)", len(meta))
	}
	buf := make([]byte, 1+4+1+8+2+len(meta)+len(r.Body))
	buf[0] = byte(FrameResponse)
	binary.BigEndian.PutUint32(buf[1:5], r.RequestID)
	buf[5] = byte(r.Status)
	binary.BigEndian.PutUint64(buf[6:14], contentLen)
	binary.BigEndian.PutUint16(buf[14:16], uint16(len(meta)))
	copy(buf[16:16+len(meta)], meta)
	copy(buf[16+len(meta):], r.Body)
	return buf, nil
}

// DecodedResponseV2 is a parsed V2 response frame.
type DecodedResponseV2 struct {
	RequestID  uint32
	Status     Status
	ContentLen uint64
	Metadata   []MetaEntry
	Body       []byte
}

// DecodeResponseV2 parses a V2 response frame, tag byte included.
func DecodeResponseV2(buf []byte) (DecodedResponseV2, error) {
	if len(buf) < 16 || FrameTag(buf[0]) != FrameResponse {
		return DecodedResponseV2{}, ErrShortFrame
	}
	requestID := binary.BigEndian.Uint32(buf[1:5])
	status := Status(buf[5])
	contentLen := binary.BigEndian.Uint64(buf[6:14])
	metaLen := int(binary.BigEndian.Uint16(buf[14:16]))
	if len(buf) < 16+metaLen {
		return DecodedResponseV2{}, ErrShortFrame
	}
	meta, err := DecodeMetadata(buf[16 : 16+metaLen])
	if err != nil {
		return DecodedResponseV2{}, err
	}
	body := buf[16+metaLen:]
	return DecodedResponseV2{
		RequestID:  requestID,
		Status:     status,
		ContentLen: contentLen,
		Metadata:   meta,
		Body:       body,
	}, nil
}

// SegmentedResponseHeader is the fixed prefix of a SEGMENTED_RESPONSE
// frame: tag(1)=FrameSegmentedResponse | request_id(4 BE) | status(1) |
// metadata_len(2 BE) | metadata | segment_count(1) | segment table.
type SegmentedResponseHeader struct {
	RequestID uint32
	Status    Status
	Metadata  []MetaEntry
	Segments  []Segment
}

// Encode serialises the frame tag, request_id, status, metadata and
// segment table; the inline payload bytes (EncodeInlinePayloads) and
// any out-of-band FDs follow per delivery order and are not
// produced here.
func (h SegmentedResponseHeader) Encode() ([]byte, error) {
	meta, err := EncodeMetadata(h.Metadata)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0xFFFF {
		return nil, fmt.Errorf("protocol: metadata too long (%d bytes)", len(meta))
	}
	segTable, err := EncodeSegmentTable(h.Segments)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+4+1+2+len(meta)+1+len(segTable))
	buf = append(buf, byte(FrameSegmentedResponse))
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], h.RequestID)
	buf = append(buf, idBuf[:]...)
	buf = append(buf, byte(h.Status))
	var metaLenBuf [2]byte
	binary.BigEndian.PutUint16(metaLenBuf[:], uint16(len(meta)))
	buf = append(buf, metaLenBuf[:]...)
	buf = append(buf, meta...)
	if len(h.Segments) > 0xFF {
		return nil, ErrTooManySegments
	}
	buf = append(buf, byte(len(h.Segments)))
	buf = append(buf, segTable...)
	return buf, nil
}

// DecodeSegmentedResponseHeader parses the fixed prefix up through the
// segment table. Per-segment inline payload bytes still need filling in
// by the caller from the bytes and FDs that follow on the wire.
func DecodeSegmentedResponseHeader(buf []byte) (SegmentedResponseHeader, int, error) {
	if len(buf) < 8 || FrameTag(buf[0]) != FrameSegmentedResponse {
		return SegmentedResponseHeader{}, 0, ErrShortFrame
	}
	requestID := binary.BigEndian.Uint32(buf[1:5])
	status := Status(buf[5])
	metaLen := int(binary.BigEndian.Uint16(buf[6:8]))
	if len(buf) < 8+metaLen+1 {
		return SegmentedResponseHeader{}, 0, ErrShortFrame
	}
	meta, err := DecodeMetadata(buf[8 : 8+metaLen])
	if err != nil {
		return SegmentedResponseHeader{}, 0, err
	}
	segCount := int(buf[8+metaLen])
	tableStart := 8 + metaLen + 1
	segs, err := DecodeSegmentTable(buf[tableStart:], segCount)
	if err != nil {
		return SegmentedResponseHeader{}, 0, err
	}
	consumed := tableStart + segmentFixedSize*segCount
	return SegmentedResponseHeader{RequestID: requestID, Status: status, Metadata: meta, Segments: segs}, consumed, nil
}
