package api

import (
	"context"
	"testing"
	"time"

	"github.com/objmapper/objmapper/pkg/config"
	"github.com/objmapper/objmapper/pkg/objmap/backend"
)

func TestServerDisabledDoesNotListen(t *testing.T) {
	m := backend.NewManager()
	s := NewServer(config.AdminConfig{Enabled: false, Addr: "127.0.0.1:0"}, m)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestServerStartAndStop(t *testing.T) {
	m := backend.NewManager()
	s := NewServer(config.AdminConfig{
		Enabled:      true,
		Addr:         "127.0.0.1:0",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}, m)

	errCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { errCh <- s.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestServerStopIsIdempotent(t *testing.T) {
	m := backend.NewManager()
	s := NewServer(config.AdminConfig{Enabled: true, Addr: "127.0.0.1:0"}, m)

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
