package server_test

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/backend/local"
	"github.com/objmapper/objmapper/pkg/objmap/protocol"
	"github.com/objmapper/objmapper/pkg/objmap/server"
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

func TestListenAndServeHandlesRequestThenShutsDown(t *testing.T) {
	m := newTestManager(t)

	ref, err := m.CreateObject(context.Background(), backend.CreateRequest{URI: "/f.bin", BackendID: -1})
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if _, err := ref.File.Write([]byte("server-package-round-trip")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.UpdateSize("/f.bin", uint64(len("server-package-round-trip"))); err != nil {
		t.Fatalf("UpdateSize: %v", err)
	}
	ref.Release()

	sockPath := filepath.Join(t.TempDir(), "objmap.sock")
	srv := server.New(m)

	ctxServe, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.ListenAndServe(ctxServe, transport.KindUnix, sockPath)
	}()

	var conn net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", sockPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if conn == nil {
		t.Fatalf("dial unix: %v", err)
	}

	c := session.DialV1(conn)
	resp, _, err := c.GetV1(protocol.ModeCopy, "/f.bin")
	if err != nil {
		t.Fatalf("GetV1: %v", err)
	}
	if resp.Status != protocol.StatusOK || string(resp.Body) != "server-package-round-trip" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	conn.Close()

	srv.Shutdown()
	select {
	case err := <-serveDone:
		if err != nil {
			t.Fatalf("ListenAndServe returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
