// Package server implements the listener loop and lifecycle:
// accept-and-spawn for stream transports, a single reader goroutine for
// the optional datagram path, and the teardown order shutdown requires
// (stop maintenance, drain sessions, flush dirty indexes, drop entries,
// destroy backends/index).
package server

import (
	"context"
	"net"
	"sync"

	"github.com/objmapper/objmapper/internal/logger"
	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/session"
	"github.com/objmapper/objmapper/pkg/objmap/transport"
)

// Server owns one transport listener, the backend.Manager it dispatches
// requests against, and every in-flight connection's goroutine. There
// are no package-level statics: every caller constructs its
// own Server.
type Server struct {
	Manager  *backend.Manager
	listener *transport.Listener
	sessions *session.Server

	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
}

// New builds a Server bound to m, ready to Serve once a listener is
// attached via ListenAndServe.
func New(m *backend.Manager) *Server {
	return &Server{
		Manager:  m,
		sessions: session.NewServer(m),
		conns:    make(map[net.Conn]struct{}),
	}
}

// SetSessionMetrics installs the metrics sink used by the per-connection
// session layer. Passing nil disables session metrics reporting.
func (s *Server) SetSessionMetrics(m session.Metrics) {
	s.sessions.SetMetrics(m)
}

// ListenAndServe opens a listener for kind/addr and runs the
// accept-and-spawn loop until ctx is cancelled or Shutdown is called. It
// blocks until every in-flight connection has finished.
func (s *Server) ListenAndServe(ctx context.Context, kind transport.Kind, addr string) error {
	ln, err := transport.Listen(ctx, kind, addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info("transport listener started", "kind", kind, "addr", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				break
			}
			logger.Warn("accept failed", "error", err)
			continue
		}
		s.trackConn(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackConn(conn)
			if err := s.sessions.Serve(ctx, conn, ln.Caps); err != nil {
				logger.Warn("session ended with error", "remote", conn.RemoteAddr(), "error", err)
			}
		}()
	}

	s.wg.Wait()
	logger.Info("transport listener stopped", "kind", kind, "addr", addr)
	return nil
}

// ServeDatagram runs the single-reader-goroutine datagram loop for the
// optional UDP transport. It reads datagrams and discards them: no request
// is decoded and no response is sent. No FD is ever passed on this path.
func (s *Server) ServeDatagram(ctx context.Context, addr string) error {
	pc, err := transport.ListenPacket(ctx, addr)
	if err != nil {
		return err
	}
	defer pc.Close()

	logger.Info("datagram listener started", "addr", addr)
	go func() {
		<-ctx.Done()
		pc.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, peer, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("datagram read failed", "error", err)
			continue
		}
		_ = n
		_ = peer
		// TODO: wire datagram requests through the session state
		// machine. UDP remains an optional transport that rejects
		// FD-pass mode, which ServeDatagram already guarantees by
		// construction (no transport.Capabilities.SupportsFDPassing
		// on this path).
	}

	logger.Info("datagram listener stopped", "addr", addr)
	return nil
}

func (s *Server) trackConn(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Shutdown stops accepting new connections, then blocks until every
// in-flight session finishes (teardown: "drain sessions" before
// flushing indexes and destroying backends).
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
}
