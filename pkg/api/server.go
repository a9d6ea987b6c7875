package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/objmapper/objmapper/internal/logger"
	"github.com/objmapper/objmapper/pkg/config"
	"github.com/objmapper/objmapper/pkg/objmap/backend"
)

// Server is the admin HTTP server described in the external interfaces
// section: a read/operate surface over a running backend.Manager,
// separate from the object-mapper wire protocol itself.
type Server struct {
	server *http.Server
	config config.AdminConfig

	shutdownOnce sync.Once
}

// NewServer constructs an admin server bound to the given manager. The
// server is not started until Start is called.
func NewServer(cfg config.AdminConfig, manager *backend.Manager) *Server {
	handler := NewRouter(manager)

	return &Server{
		config: cfg,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start begins serving the admin API and blocks until ctx is cancelled
// or the server fails. Callers typically run Start in its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info("admin API disabled, not starting")
		<-ctx.Done()
		return nil
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "addr", s.config.Addr)

		var serveErr error
		if socketPath, ok := strings.CutPrefix(s.config.Addr, "unix:"); ok {
			_ = os.Remove(socketPath)
			ln, err := net.Listen("unix", socketPath)
			if err != nil {
				errChan <- fmt.Errorf("admin API: listen unix %s: %w", socketPath, err)
				return
			}
			serveErr = s.server.Serve(ln)
		} else {
			serveErr = s.server.ListenAndServe()
		}

		if serveErr != nil && serveErr != http.ErrServerClosed {
			errChan <- fmt.Errorf("admin API: %w", serveErr)
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop gracefully shuts down the admin server, giving in-flight requests
// up to 5 seconds to finish.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		logger.Info("admin API shutting down")
		err = s.server.Shutdown(shutdownCtx)
	})
	return err
}

// Addr returns the address the admin server is configured to listen on.
func (s *Server) Addr() string {
	return s.config.Addr
}
