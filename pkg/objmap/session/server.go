package session

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/objmapper/objmapper/internal/logger"
	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/index"
	"github.com/objmapper/objmapper/pkg/objmap/protocol"
	"github.com/objmapper/objmapper/pkg/objmap/transport"
)

// ServerCapabilities is the capability set this server advertises during
// a V2 handshake. Segmented delivery is included since backend/local
// supports file-to-file splice copies the same way migration does, but
// compression and multiplexing are left unset: nothing in this
// implementation compresses bodies or multiplexes several logical
// streams over one connection.
const ServerCapabilities = protocol.CapOOOReplies | protocol.CapPipelining | protocol.CapSegmentedDelivery

// Server dispatches requests arriving on one accepted connection against
// a shared backend.Manager. One Server value is reused across every
// connection; Serve is called once per accepted connection, each in its
// own goroutine ("one worker per accepted stream connection").
type Server struct {
	Manager *backend.Manager
	Metrics Metrics
}

// NewServer builds a Server bound to m.
func NewServer(m *backend.Manager) *Server {
	return &Server{Manager: m}
}

// SetMetrics installs the metrics sink used to observe connection
// lifetimes and per-request outcomes. Passing nil disables reporting.
func (s *Server) SetMetrics(m Metrics) {
	s.Metrics = m
}

// Serve drives one connection's state machine to completion: handshake
// (or straight-to-Ready for V1), request/response loop, then Draining
// and Closed on a CLOSE frame or a clean EOF. It returns nil on a normal
// close and a non-nil error only for I/O failures on the transport
// itself — protocol-level errors are reported to the peer as non-OK
// responses and do not end the connection, except for the
// protocol violations calls out, which transition to Failed and
// return an error here.
func (s *Server) Serve(ctx context.Context, conn net.Conn, caps transport.Capabilities) error {
	defer conn.Close()
	if s.Metrics != nil {
		s.Metrics.RecordConnectionOpened()
		defer s.Metrics.RecordConnectionClosed()
	}
	sm := newStateMachine()

	br := bufio.NewReader(conn)
	first, err := br.Peek(1)
	if err != nil {
		if err == io.EOF {
			sm.transition(StateClosed)
			return nil
		}
		sm.transition(StateFailed)
		return fmt.Errorf("session: peek first byte: %w", err)
	}

	sm.transition(StateHandshaking)
	if first[0] == protocol.HelloMagic[0] {
		return s.serveV2(ctx, sm, conn, br, caps)
	}
	return s.serveV1(ctx, sm, conn, br, caps)
}

func (s *Server) serveV1(ctx context.Context, sm *stateMachine, conn net.Conn, br *bufio.Reader, caps transport.Capabilities) error {
	for {
		modeByte, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				sm.transition(StateClosed)
				return nil
			}
			sm.transition(StateFailed)
			return fmt.Errorf("session: read v1 mode: %w", err)
		}
		var lenBuf [2]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			sm.transition(StateFailed)
			return fmt.Errorf("session: read v1 uri_len: %w", err)
		}
		uriLen := int(binary.BigEndian.Uint16(lenBuf[:]))
		uriBuf := make([]byte, uriLen)
		if _, err := io.ReadFull(br, uriBuf); err != nil {
			sm.transition(StateFailed)
			return fmt.Errorf("session: read v1 uri: %w", err)
		}

		if err := sm.toReady(); err != nil {
			sm.transition(StateFailed)
			return err
		}
		if err := sm.toServing(); err != nil {
			sm.transition(StateFailed)
			return err
		}

		status, meta, body, file, herr := s.handleGet(ctx, string(uriBuf), protocol.Mode(modeByte), caps)
		if herr != nil {
			logger.Warn("session: v1 request failed", "uri", string(uriBuf), "error", herr)
		}

		contentLen := uint64(len(body))
		if file != nil {
			contentLen = 0
		}
		frame, err := protocol.ResponseV1{Status: status, Metadata: meta, Body: body}.Encode(contentLen)
		if err != nil {
			sm.transition(StateFailed)
			return fmt.Errorf("session: encode v1 response: %w", err)
		}
		if _, err := conn.Write(frame); err != nil {
			sm.transition(StateFailed)
			return fmt.Errorf("session: write v1 response: %w", err)
		}
		if file != nil {
			if err := transport.SendFD(conn, file, nil); err != nil {
				sm.transition(StateFailed)
				return fmt.Errorf("session: send v1 fd: %w", err)
			}
		}

		if err := sm.toReady(); err != nil {
			sm.transition(StateFailed)
			return err
		}
	}
}

func (s *Server) serveV2(ctx context.Context, sm *stateMachine, conn net.Conn, br *bufio.Reader, caps transport.Capabilities) error {
	helloBuf := make([]byte, 9)
	if _, err := io.ReadFull(br, helloBuf); err != nil {
		sm.transition(StateFailed)
		return fmt.Errorf("session: read hello: %w", err)
	}
	hello, err := protocol.DecodeHello(helloBuf)
	if err != nil {
		sm.transition(StateFailed)
		return fmt.Errorf("session: decode hello: %w", err)
	}

	negotiated := protocol.Negotiate(hello.Capabilities, ServerCapabilities)
	ack := protocol.HelloAck{
		Version:            protocol.ProtocolVersion,
		Capabilities:       negotiated,
		MaxPipeline:        hello.MaxPipeline,
		BackendParallelism: 1,
	}
	if _, err := conn.Write(ack.Encode()); err != nil {
		sm.transition(StateFailed)
		return fmt.Errorf("session: write hello_ack: %w", err)
	}
	if err := sm.toReady(); err != nil {
		sm.transition(StateFailed)
		return err
	}

	for {
		tagByte, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				sm.transition(StateClosed)
				return nil
			}
			sm.transition(StateFailed)
			return fmt.Errorf("session: read v2 tag: %w", err)
		}

		switch protocol.FrameTag(tagByte) {
		case protocol.FrameRequest:
			if err := s.serveV2Request(ctx, sm, conn, br, caps, tagByte); err != nil {
				sm.transition(StateFailed)
				return err
			}
		case protocol.FrameClose:
			reason, err := br.ReadByte()
			if err != nil {
				sm.transition(StateFailed)
				return fmt.Errorf("session: read close reason: %w", err)
			}
			_ = reason
			sm.transition(StateDraining)
			if _, err := conn.Write(protocol.EncodeCloseAck(0)); err != nil {
				sm.transition(StateFailed)
				return fmt.Errorf("session: write close_ack: %w", err)
			}
			sm.transition(StateClosed)
			return nil
		default:
			sm.transition(StateFailed)
			return fmt.Errorf("session: unknown v2 frame tag %d", tagByte)
		}
	}
}

func (s *Server) serveV2Request(ctx context.Context, sm *stateMachine, conn net.Conn, br *bufio.Reader, caps transport.Capabilities, tagByte byte) error {
	rest := make([]byte, 7) // request_id(4) | mode(1) | uri_len(2)
	if _, err := io.ReadFull(br, rest); err != nil {
		return fmt.Errorf("session: read v2 request prefix: %w", err)
	}
	requestID := binary.BigEndian.Uint32(rest[0:4])
	mode := protocol.Mode(rest[4])
	uriLen := int(binary.BigEndian.Uint16(rest[5:7]))
	uriBuf := make([]byte, uriLen)
	if _, err := io.ReadFull(br, uriBuf); err != nil {
		return fmt.Errorf("session: read v2 request uri: %w", err)
	}

	if err := sm.toServing(); err != nil {
		return err
	}

	status, meta, body, file, herr := s.handleGet(ctx, string(uriBuf), mode, caps)
	if herr != nil {
		logger.Warn("session: v2 request failed", "request_id", requestID, "error", herr)
	}

	contentLen := uint64(len(body))
	if file != nil {
		contentLen = 0
	}
	frame, err := protocol.ResponseV2{RequestID: requestID, Status: status, Metadata: meta, Body: body}.Encode(contentLen)
	if err != nil {
		return fmt.Errorf("session: encode v2 response: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("session: write v2 response: %w", err)
	}
	if file != nil {
		if err := transport.SendFD(conn, file, nil); err != nil {
			return fmt.Errorf("session: send v2 fd: %w", err)
		}
	}

	return sm.toReady()
}

// handleGet resolves a single request's body and metadata. The
// returned *os.File is non-nil exactly when delivery mode is
// DeliveryFdPass; callers must not close it (the manager owns its
// lifetime — Release on the FdRef below only decrements a refcount).
func (s *Server) handleGet(ctx context.Context, uri string, wireMode protocol.Mode, caps transport.Capabilities) (status protocol.Status, meta []protocol.MetaEntry, body []byte, file *os.File, err error) {
	if s.Metrics != nil {
		started := time.Now()
		defer func() {
			s.Metrics.ObserveRequest("get", status, time.Since(started))
		}()
	}
	return s.handleGetUnmetered(ctx, uri, wireMode, caps)
}

func (s *Server) handleGetUnmetered(ctx context.Context, uri string, wireMode protocol.Mode, caps transport.Capabilities) (protocol.Status, []protocol.MetaEntry, []byte, *os.File, error) {
	ref, err := s.Manager.GetObject(ctx, uri)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return protocol.StatusNotFound, []protocol.MetaEntry{protocol.MetaErrorEntry("object not found: " + uri)}, nil, nil, nil
		}
		return protocol.StatusInternalError, []protocol.MetaEntry{protocol.MetaErrorEntry(err.Error())}, nil, nil, err
	}
	defer ref.Release()

	meta := []protocol.MetaEntry{
		protocol.MetaSizeEntry(ref.Entry.Size()),
		protocol.MetaMtimeEntry(uint64(ref.Entry.Mtime().UnixNano())),
		protocol.MetaBackendEntry(byte(ref.Entry.BackendID())),
	}
	if d, has := ref.Entry.Descriptor(); has {
		meta = append(meta, protocol.MetaPayloadEntry(d.Pack()))
	}

	mode := SelectDeliveryMode(wireMode, caps, ref.File != nil)
	if mode == DeliveryFdPass {
		return protocol.StatusOK, meta, nil, ref.File, nil
	}

	h, err := s.Manager.OpenBody(ctx, ref)
	if err != nil {
		return protocol.StatusStorageError, append(meta, protocol.MetaErrorEntry(err.Error())), nil, nil, err
	}
	defer h.Close()

	var r io.Reader = h.Reader
	if h.File != nil {
		r = h.File
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return protocol.StatusStorageError, append(meta, protocol.MetaErrorEntry(err.Error())), nil, nil, err
	}
	return protocol.StatusOK, meta, body, nil, nil
}
