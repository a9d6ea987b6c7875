package session_test

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/backend/local"
	"github.com/objmapper/objmapper/pkg/objmap/protocol"
	"github.com/objmapper/objmapper/pkg/objmap/session"
	"github.com/objmapper/objmapper/pkg/objmap/transport"
)

func newTestManager(t *testing.T) *backend.Manager {
	t.Helper()
	store, err := local.New(local.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	b := backend.New(1, backend.TypeSSD, t.TempDir(), 1<<30, 1.0,
		backend.Flags{Enabled: true, Persistent: true},
		backend.Watermarks{Low: 0.2, High: 0.8}, store)

	m := backend.NewManager()
	if err := m.RegisterBackend(b); err != nil {
		t.Fatalf("RegisterBackend: %v", err)
	}
	if err := m.SetDefault(1); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	return m
}

func putObject(t *testing.T, m *backend.Manager, uri string, data []byte) {
	t.Helper()
	ctx := context.Background()
	ref, err := m.CreateObject(ctx, backend.CreateRequest{URI: uri, BackendID: -1})
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if _, err := ref.File.Write(data); err != nil {
		t.Fatalf("write object body: %v", err)
	}
	if err := m.UpdateSize(uri, uint64(len(data))); err != nil {
		t.Fatalf("UpdateSize: %v", err)
	}
	ref.Release()
}

func unixSocketPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "objmap.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- c
	}()

	cliConn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial unix: %v", err)
	}
	select {
	case c := <-acceptCh:
		return cliConn, c
	case err := <-errCh:
		t.Fatalf("accept unix: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	return nil, nil
}

func TestServeV1CopyModeRoundTrip(t *testing.T) {
	m := newTestManager(t)
	body := []byte("Hello from FD passing!\nThis line pads it out to sixty-four bytes!!")
	putObject(t, m, "/test1.txt", body)

	cli, srv := unixSocketPair(t)
	defer cli.Close()

	srvDone := make(chan error, 1)
	go func() {
		srvDone <- session.NewServer(m).Serve(context.Background(), srv, transport.CapabilitiesFor(transport.KindUnix))
	}()

	c := session.DialV1(cli)
	resp, df, err := c.GetV1(protocol.ModeCopy, "/test1.txt")
	if err != nil {
		t.Fatalf("GetV1: %v", err)
	}
	if df != nil {
		t.Fatal("expected no ancillary fd in copy mode")
	}
	if resp.Status != protocol.StatusOK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
	if string(resp.Body) != string(body) {
		t.Fatalf("body = %q, want %q", resp.Body, body)
	}

	cli.Close()
	<-srvDone
}

func TestServeV1FDPassModeRoundTrip(t *testing.T) {
	m := newTestManager(t)
	body := []byte("Hello from FD passing!\nThis line pads it out to sixty-four bytes!!")
	putObject(t, m, "/test1.txt", body)

	cli, srv := unixSocketPair(t)
	defer cli.Close()

	srvDone := make(chan error, 1)
	go func() {
		srvDone <- session.NewServer(m).Serve(context.Background(), srv, transport.CapabilitiesFor(transport.KindUnix))
	}()

	uc, ok := cli.(*net.UnixConn)
	if !ok {
		t.Fatal("expected *net.UnixConn")
	}

	req, err := protocol.RequestV1{Mode: protocol.ModeFDPass, URI: "/test1.txt"}.Encode()
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	if _, err := uc.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	head := make([]byte, 11)
	if _, err := readFull(uc, head); err != nil {
		t.Fatalf("read head: %v", err)
	}
	status := protocol.Status(head[0])
	if status != protocol.StatusOK {
		t.Fatalf("status = %v, want OK", status)
	}
	contentLen := beUint64(head[1:9])
	if contentLen != 0 {
		t.Fatalf("content_len = %d, want 0 (FD pass)", contentLen)
	}
	metaLen := beUint16(head[9:11])
	if metaLen == 0 {
		t.Fatal("expected non-empty metadata")
	}
	meta := make([]byte, metaLen)
	if _, err := readFull(uc, meta); err != nil {
		t.Fatalf("read metadata: %v", err)
	}

	oob := make([]byte, 32)
	buf := make([]byte, 1)
	_, oobn, _, _, err := uc.ReadMsgUnix(buf, oob)
	if err != nil {
		t.Fatalf("recvmsg: %v", err)
	}
	if oobn == 0 {
		t.Fatal("expected an ancillary fd")
	}

	cli.Close()
	<-srvDone
}

func TestServeV2HandshakeAndGet(t *testing.T) {
	m := newTestManager(t)
	body := []byte("same data, copy mode")
	putObject(t, m, "/test2.txt", body)

	cli, srv := unixSocketPair(t)
	defer cli.Close()

	srvDone := make(chan error, 1)
	go func() {
		srvDone <- session.NewServer(m).Serve(context.Background(), srv, transport.CapabilitiesFor(transport.KindUnix))
	}()

	c, ack, err := session.DialV2(cli, protocol.CapOOOReplies|protocol.CapPipelining, 16)
	if err != nil {
		t.Fatalf("DialV2: %v", err)
	}
	if ack.Capabilities&protocol.CapOOOReplies == 0 {
		t.Fatal("expected OOO_REPLIES to be negotiated")
	}

	if err := c.SendRequestV2(1, protocol.ModeCopy, "/test2.txt"); err != nil {
		t.Fatalf("SendRequestV2: %v", err)
	}
	resp, err := c.RecvResponseFor(1)
	if err != nil {
		t.Fatalf("RecvResponseFor: %v", err)
	}
	if resp.Status != protocol.StatusOK || string(resp.Body) != string(body) {
		t.Fatalf("unexpected response: %+v", resp)
	}

	cli.Close()
	<-srvDone
}

func TestServeGetNotFound(t *testing.T) {
	m := newTestManager(t)

	cli, srv := unixSocketPair(t)
	defer cli.Close()

	srvDone := make(chan error, 1)
	go func() {
		srvDone <- session.NewServer(m).Serve(context.Background(), srv, transport.CapabilitiesFor(transport.KindUnix))
	}()

	c := session.DialV1(cli)
	resp, _, err := c.GetV1(protocol.ModeCopy, "/missing.txt")
	if err != nil {
		t.Fatalf("GetV1: %v", err)
	}
	if resp.Status != protocol.StatusNotFound {
		t.Fatalf("status = %v, want NOT_FOUND", resp.Status)
	}

	cli.Close()
	<-srvDone
}

func TestSelectDeliveryModeDowngradesOnNonUnixTransport(t *testing.T) {
	tcpCaps := transport.CapabilitiesFor(transport.KindTCP)
	mode := session.SelectDeliveryMode(protocol.ModeFDPass, tcpCaps, true)
	if mode != session.DeliveryCopy {
		t.Fatalf("mode = %v, want Copy (downgrade on non-unix transport)", mode)
	}
}

func TestSelectDeliveryModeDowngradesWithoutBackendFD(t *testing.T) {
	unixCaps := transport.CapabilitiesFor(transport.KindUnix)
	mode := session.SelectDeliveryMode(protocol.ModeFDPass, unixCaps, false)
	if mode != session.DeliveryCopy {
		t.Fatalf("mode = %v, want Copy (no backend fd to pass)", mode)
	}
}

func TestSelectDeliveryModeKeepsFDPassWhenBothSupport(t *testing.T) {
	unixCaps := transport.CapabilitiesFor(transport.KindUnix)
	mode := session.SelectDeliveryMode(protocol.ModeFDPass, unixCaps, true)
	if mode != session.DeliveryFdPass {
		t.Fatalf("mode = %v, want FdPass", mode)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
