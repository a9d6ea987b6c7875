// Package transport abstracts the connection-oriented and datagram
// listeners the server accepts on, and the ancillary-FD passing
// primitive only a Unix domain socket can offer: FD-pass delivery is
// downgraded to a plain copy on every other transport.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Capabilities describes what a transport can do, consulted by the
// session layer when choosing a delivery mode.
type Capabilities struct {
	SupportsFDPassing    bool
	IsStream             bool // false for datagram transports (UDP)
	IsConnectionOriented bool
}

// Kind identifies a configured transport.
type Kind string

const (
	KindUnix Kind = "unix"
	KindTCP  Kind = "tcp"
	KindUDP  Kind = "udp"
)

// CapabilitiesFor returns the fixed capability set for a transport kind.
func CapabilitiesFor(k Kind) Capabilities {
	switch k {
	case KindUnix:
		return Capabilities{SupportsFDPassing: true, IsStream: true, IsConnectionOriented: true}
	case KindTCP:
		return Capabilities{SupportsFDPassing: false, IsStream: true, IsConnectionOriented: true}
	case KindUDP:
		return Capabilities{SupportsFDPassing: false, IsStream: false, IsConnectionOriented: false}
	default:
		return Capabilities{}
	}
}

// ErrUnknownKind is returned by Listen for an unrecognised Kind.
var ErrUnknownKind = errors.New("transport: unknown kind")

// Listener wraps a net.Listener (stream transports) alongside the
// capability set the session layer needs, so callers never have to
// re-derive capabilities from a bare net.Listener's Addr().Network().
type Listener struct {
	net.Listener
	Kind Kind
	Caps Capabilities
}

// Listen opens a stream listener for kind ("unix" or "tcp") at addr. UDP
// has no listener concept — use ListenPacket instead.
func Listen(ctx context.Context, kind Kind, addr string) (*Listener, error) {
	if kind != KindUnix && kind != KindTCP {
		return nil, fmt.Errorf("%w: %s (use ListenPacket for udp)", ErrUnknownKind, kind)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, string(kind), addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s %s: %w", kind, addr, err)
	}
	return &Listener{Listener: ln, Kind: kind, Caps: CapabilitiesFor(kind)}, nil
}

// PacketConn wraps a net.PacketConn for the datagram (UDP) transport.
// FD-pass mode is not supported over datagram transports.
type PacketConn struct {
	net.PacketConn
	Caps Capabilities
}

// ListenPacket opens a UDP packet listener at addr.
func ListenPacket(ctx context.Context, addr string) (*PacketConn, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, string(KindUDP), addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp %s: %w", addr, err)
	}
	return &PacketConn{PacketConn: pc, Caps: CapabilitiesFor(KindUDP)}, nil
}
