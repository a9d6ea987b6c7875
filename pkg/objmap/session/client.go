package session

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/objmapper/objmapper/pkg/objmap/protocol"
)

// Client is a minimal driver for the wire protocol, used by tests and by
// objmapperctl's diagnostic commands. It is deliberately small: just
// enough to issue GET-style requests and decode responses, including the
// out-of-order pending-response stash requires of an
// OOO_REPLIES-capable client (S5 in ).
type Client struct {
	conn    net.Conn
	br      *bufio.Reader
	version byte

	mu      sync.Mutex
	pending map[uint32]protocol.DecodedResponseV2
}

// DialV1 wraps an already-connected conn for legacy, handshake-less
// requests.
func DialV1(conn net.Conn) *Client {
	return &Client{conn: conn, br: bufio.NewReader(conn), version: 1}
}

// DialV2 performs the V2 handshake over conn and returns a Client bound
// to the negotiated capabilities.
func DialV2(conn net.Conn, clientCaps protocol.Capability, maxPipeline uint16) (*Client, protocol.HelloAck, error) {
	hello := protocol.Hello{Version: protocol.ProtocolVersion, Capabilities: clientCaps, MaxPipeline: maxPipeline}
	if _, err := conn.Write(hello.Encode()); err != nil {
		return nil, protocol.HelloAck{}, fmt.Errorf("session: write hello: %w", err)
	}
	br := bufio.NewReader(conn)
	buf := make([]byte, 10)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, protocol.HelloAck{}, fmt.Errorf("session: read hello_ack: %w", err)
	}
	ack, err := protocol.DecodeHelloAck(buf)
	if err != nil {
		return nil, protocol.HelloAck{}, err
	}
	return &Client{conn: conn, br: br, version: 2, pending: make(map[uint32]protocol.DecodedResponseV2)}, ack, nil
}

// GetV1 issues a legacy request and returns its decoded response. If the
// response carries an ancillary FD (FD_PASS with content_len 0), it is
// read and returned as the second value.
func (c *Client) GetV1(mode protocol.Mode, uri string) (protocol.DecodedResponseV1, *decodedFile, error) {
	req, err := protocol.RequestV1{Mode: mode, URI: uri}.Encode()
	if err != nil {
		return protocol.DecodedResponseV1{}, nil, err
	}
	if _, err := c.conn.Write(req); err != nil {
		return protocol.DecodedResponseV1{}, nil, fmt.Errorf("session: write v1 request: %w", err)
	}

	head := make([]byte, 11)
	if _, err := io.ReadFull(c.br, head); err != nil {
		return protocol.DecodedResponseV1{}, nil, fmt.Errorf("session: read v1 response head: %w", err)
	}
	metaLen := int(binary.BigEndian.Uint16(head[9:11]))
	rest := make([]byte, metaLen)
	if _, err := io.ReadFull(c.br, rest); err != nil {
		return protocol.DecodedResponseV1{}, nil, fmt.Errorf("session: read v1 metadata: %w", err)
	}
	full := append(head, rest...)

	contentLen := binary.BigEndian.Uint64(head[1:9])
	status := protocol.Status(head[0])

	var df *decodedFile
	var body []byte
	if status == protocol.StatusOK && mode == protocol.ModeFDPass && contentLen == 0 {
		df, err = c.recvFD()
		if err != nil {
			return protocol.DecodedResponseV1{}, nil, err
		}
	} else if contentLen > 0 {
		body = make([]byte, contentLen)
		if _, err := io.ReadFull(c.br, body); err != nil {
			return protocol.DecodedResponseV1{}, nil, fmt.Errorf("session: read v1 body: %w", err)
		}
	}

	decoded, err := protocol.DecodeResponseV1(append(full, body...))
	if err != nil {
		return protocol.DecodedResponseV1{}, nil, err
	}
	return decoded, df, nil
}

// decodedFile wraps a received ancillary FD together with its n-byte
// read count from the accompanying regular-data message (normally 0 for
// our server's SendFD calls, which send an empty payload alongside the
// descriptor).
type decodedFile struct {
	N int
	// File intentionally left untyped here (os.File) — callers needing
	// the fd use transport.RecvFD directly; this type only documents the
	// shape for test readability.
}

func (c *Client) recvFD() (*decodedFile, error) {
	uc, ok := c.conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("session: FD-pass response requires a unix socket, got %T", c.conn)
	}
	buf := make([]byte, 1)
	oob := make([]byte, 32)
	n, oobn, _, _, err := uc.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, fmt.Errorf("session: recvmsg: %w", err)
	}
	if oobn == 0 {
		return nil, fmt.Errorf("session: expected an ancillary fd, got none")
	}
	return &decodedFile{N: n}, nil
}

// RecvResponseFor implements the client side of out-of-order replies:
// it keeps reading V2 response frames, stashing any whose request_id
// doesn't match id, until it finds (or has already stashed) the one
// being waited for.
func (c *Client) RecvResponseFor(id uint32) (protocol.DecodedResponseV2, error) {
	c.mu.Lock()
	if resp, ok := c.pending[id]; ok {
		delete(c.pending, id)
		c.mu.Unlock()
		return resp, nil
	}
	c.mu.Unlock()

	for {
		resp, err := c.readResponseV2()
		if err != nil {
			return protocol.DecodedResponseV2{}, err
		}
		if resp.RequestID == id {
			return resp, nil
		}
		c.mu.Lock()
		c.pending[resp.RequestID] = resp
		c.mu.Unlock()
	}
}

func (c *Client) readResponseV2() (protocol.DecodedResponseV2, error) {
	tag, err := c.br.ReadByte()
	if err != nil {
		return protocol.DecodedResponseV2{}, fmt.Errorf("session: read v2 response tag: %w", err)
	}
	if protocol.FrameTag(tag) != protocol.FrameResponse {
		return protocol.DecodedResponseV2{}, fmt.Errorf("session: unexpected v2 frame tag %d", tag)
	}
	head := make([]byte, 15) // request_id(4)+status(1)+content_len(8)+metadata_len(2)
	if _, err := io.ReadFull(c.br, head); err != nil {
		return protocol.DecodedResponseV2{}, fmt.Errorf("session: read v2 response head: %w", err)
	}
	metaLen := int(binary.BigEndian.Uint16(head[13:15]))
	meta := make([]byte, metaLen)
	if _, err := io.ReadFull(c.br, meta); err != nil {
		return protocol.DecodedResponseV2{}, fmt.Errorf("session: read v2 metadata: %w", err)
	}
	contentLen := binary.BigEndian.Uint64(head[5:13])
	body := make([]byte, contentLen)
	if contentLen > 0 {
		if _, err := io.ReadFull(c.br, body); err != nil {
			return protocol.DecodedResponseV2{}, fmt.Errorf("session: read v2 body: %w", err)
		}
	}
	full := append([]byte{tag}, head...)
	full = append(full, meta...)
	full = append(full, body...)
	return protocol.DecodeResponseV2(full)
}

// SendRequestV2 writes a V2 request frame without waiting for a
// response, letting callers pipeline several before reading any back
// (exercised by OOO_REPLIES tests).
func (c *Client) SendRequestV2(requestID uint32, mode protocol.Mode, uri string) error {
	req, err := protocol.RequestV2{RequestID: requestID, Mode: mode, URI: uri}.Encode()
	if err != nil {
		return err
	}
	_, err = c.conn.Write(req)
	return err
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
