package session

import (
	"github.com/objmapper/objmapper/pkg/objmap/protocol"
	"github.com/objmapper/objmapper/pkg/objmap/transport"
)

// DeliveryMode is the session's internal delivery decision: exactly one
// variant is chosen once per request and carried explicitly rather than
// re-derived from a mode byte at each call site.
type DeliveryMode int

const (
	DeliveryFdPass DeliveryMode = iota
	DeliveryCopy
	DeliverySplice
	DeliverySegmented
)

func (m DeliveryMode) String() string {
	switch m {
	case DeliveryFdPass:
		return "FdPass"
	case DeliveryCopy:
		return "Copy"
	case DeliverySplice:
		return "Splice"
	case DeliverySegmented:
		return "Segmented"
	default:
		return "Unknown"
	}
}

// SelectDeliveryMode derives a DeliveryMode from a request's wire mode,
// a backend's FD-passing support, and the transport's own capability
// set — downgrading FD_PASS to COPY whenever either side can't carry a
// descriptor — FD_PASS is downgraded to COPY on non-Unix transports;
// the network-backend case is the same downgrade for a different
// reason, a Store with no local fd to hand over.
func SelectDeliveryMode(wireMode protocol.Mode, transportCaps transport.Capabilities, backendSupportsFD bool) DeliveryMode {
	if wireMode == protocol.ModeFDPass && transportCaps.SupportsFDPassing && backendSupportsFD {
		return DeliveryFdPass
	}
	return DeliveryCopy
}
