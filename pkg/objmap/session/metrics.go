package session

import (
	"time"

	"github.com/objmapper/objmapper/pkg/objmap/protocol"
)

// Metrics receives per-connection and per-request observations from a
// Server. A nil Metrics (the default) costs nothing beyond a guard
// check at each call site.
type Metrics interface {
	RecordConnectionOpened()
	RecordConnectionClosed()
	ObserveRequest(op string, status protocol.Status, duration time.Duration)
}
