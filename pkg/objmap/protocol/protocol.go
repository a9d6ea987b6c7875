// Package protocol implements the framed wire protocol:
// V1 legacy framing, V2 capability-negotiated handshake and tagged
// frames, segmented multi-buffer delivery, and TLV metadata. All
// multi-byte integers on the wire are big-endian; only the packed
// PayloadDescriptor embedded in a PAYLOAD metadata entry uses
// little-endian fields (payload.Descriptor.Pack already produces that
// layout, so this package treats it as an opaque byte blob).
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Mode is a V1 request's delivery mode byte.
type Mode byte

const (
	ModeFDPass Mode = 1
	ModeCopy   Mode = 2
)

// Status is a response's outcome byte (protocol-level status
// codes).
type Status byte

const (
	StatusOK              Status = 0
	StatusNotFound        Status = 1
	StatusInvalidRequest  Status = 2
	StatusInvalidMode     Status = 3
	StatusURITooLong      Status = 4
	StatusUnsupportedOp   Status = 5
	StatusInternalError   Status = 6
	StatusStorageError    Status = 7
	StatusOutOfMemory     Status = 8
	StatusTimeout         Status = 9
	StatusUnavailable     Status = 10
	StatusProtocolError   Status = 11
	StatusVersionMismatch Status = 12
	StatusCapabilityError Status = 13
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusInvalidRequest:
		return "INVALID_REQUEST"
	case StatusInvalidMode:
		return "INVALID_MODE"
	case StatusURITooLong:
		return "URI_TOO_LONG"
	case StatusUnsupportedOp:
		return "UNSUPPORTED_OP"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusStorageError:
		return "STORAGE_ERROR"
	case StatusOutOfMemory:
		return "OUT_OF_MEMORY"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusUnavailable:
		return "UNAVAILABLE"
	case StatusProtocolError:
		return "PROTOCOL_ERROR"
	case StatusVersionMismatch:
		return "VERSION_MISMATCH"
	case StatusCapabilityError:
		return "CAPABILITY_ERROR"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// FrameTag identifies a V2 frame kind.
type FrameTag byte

const (
	FrameRequest           FrameTag = 1
	FrameResponse          FrameTag = 2
	FrameSegmentedResponse FrameTag = 3
	FrameClose             FrameTag = 4
	FrameCloseAck          FrameTag = 5
)

// Capability is a V2 negotiated capability bit.
type Capability uint16

const (
	CapOOOReplies        Capability = 1 << 0
	CapPipelining        Capability = 1 << 1
	CapCompression       Capability = 1 << 2
	CapMultiplexing      Capability = 1 << 3
	CapSegmentedDelivery Capability = 1 << 4
)

// Negotiate returns the bitwise AND of client and server capabilities
//.
func Negotiate(client, server Capability) Capability {
	return client & server
}

// HelloMagic is the 4-byte magic every V2 HELLO/HELLO_ACK frame starts
// with.
var HelloMagic = [4]byte{'O', 'B', 'J', 'M'}

const ProtocolVersion byte = 2

// Hello is the client's V2 handshake frame.
type Hello struct {
	Version      byte
	Capabilities Capability
	MaxPipeline  uint16
}

// Encode serialises a Hello frame: "OBJM"(4) | version(1) | capabilities(2) | max_pipeline(2).
func (h Hello) Encode() []byte {
	buf := make([]byte, 9)
	copy(buf[0:4], HelloMagic[:])
	buf[4] = h.Version
	binary.BigEndian.PutUint16(buf[5:7], uint16(h.Capabilities))
	binary.BigEndian.PutUint16(buf[7:9], h.MaxPipeline)
	return buf
}

// ErrBadMagic is returned when a HELLO/HELLO_ACK frame doesn't start
// with "OBJM".
var ErrBadMagic = errors.New("protocol: bad handshake magic")

// ErrShortFrame is returned when a buffer is too small for the frame
// being decoded.
var ErrShortFrame = errors.New("protocol: frame too short")

// DecodeHello parses a Hello frame.
func DecodeHello(buf []byte) (Hello, error) {
	if len(buf) < 9 {
		return Hello{}, ErrShortFrame
	}
	if string(buf[0:4]) != string(HelloMagic[:]) {
		return Hello{}, ErrBadMagic
	}
	return Hello{
		Version:      buf[4],
		Capabilities: Capability(binary.BigEndian.Uint16(buf[5:7])),
		MaxPipeline:  binary.BigEndian.Uint16(buf[7:9]),
	}, nil
}

// HelloAck is the server's V2 handshake reply.
type HelloAck struct {
	Version            byte
	Capabilities       Capability
	MaxPipeline        uint16
	BackendParallelism byte
}

// Encode serialises a HelloAck frame: "OBJM"(4) | version(1) | caps(2) | max_pipeline(2) | backend_parallelism(1).
func (a HelloAck) Encode() []byte {
	buf := make([]byte, 10)
	copy(buf[0:4], HelloMagic[:])
	buf[4] = a.Version
	binary.BigEndian.PutUint16(buf[5:7], uint16(a.Capabilities))
	binary.BigEndian.PutUint16(buf[7:9], a.MaxPipeline)
	buf[9] = a.BackendParallelism
	return buf
}

// DecodeHelloAck parses a HelloAck frame.
func DecodeHelloAck(buf []byte) (HelloAck, error) {
	if len(buf) < 10 {
		return HelloAck{}, ErrShortFrame
	}
	if string(buf[0:4]) != string(HelloMagic[:]) {
		return HelloAck{}, ErrBadMagic
	}
	return HelloAck{
		Version:            buf[4],
		Capabilities:       Capability(binary.BigEndian.Uint16(buf[5:7])),
		MaxPipeline:        binary.BigEndian.Uint16(buf[7:9]),
		BackendParallelism: buf[9],
	}, nil
}

// Close is the CLOSE frame body: CLOSE(1) | reason(1). The tag byte
// itself is framed separately by the transport reader, so this struct
// only carries reason.
type Close struct {
	Reason byte
}

// CloseAck is the CLOSE_ACK frame body: CLOSE_ACK(1) | _pad(1) | outstanding(4 BE).
type CloseAck struct {
	Outstanding uint32
}

// EncodeCloseAck serialises a CloseAck frame, including its leading
// FrameCloseAck tag byte.
func EncodeCloseAck(outstanding uint32) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(FrameCloseAck)
	buf[1] = 0
	binary.BigEndian.PutUint32(buf[2:6], outstanding)
	return buf
}

// DecodeCloseAck parses a CloseAck frame body, including its leading tag
// byte.
func DecodeCloseAck(buf []byte) (CloseAck, error) {
	if len(buf) < 6 || FrameTag(buf[0]) != FrameCloseAck {
		return CloseAck{}, ErrShortFrame
	}
	return CloseAck{Outstanding: binary.BigEndian.Uint32(buf[2:6])}, nil
}
