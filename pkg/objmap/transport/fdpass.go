package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// maxAncillaryBytes bounds a single SCM_RIGHTS control message's out-of-band
// buffer to the space needed for one fd; segmented responses send one
// control message per non-reused FD segment rather than batching, so
// descriptors arrive in order.
const maxAncillaryBytes = 32 // unix.CmsgSpace(4) rounded up across platforms

// SendFD passes f's descriptor across conn as an SCM_RIGHTS ancillary
// message, with payload as the accompanying regular bytes (may be empty).
// conn must wrap a *net.UnixConn; passing any other connection type is a
// programmer error since only Unix domain sockets carry ancillary data.
func SendFD(conn net.Conn, f *os.File, payload []byte) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("transport: SendFD requires a unix socket, got %T", conn)
	}
	rights := unix.UnixRights(int(f.Fd()))
	_, _, err := uc.WriteMsgUnix(payload, rights, nil)
	if err != nil {
		return fmt.Errorf("transport: sendmsg: %w", err)
	}
	return nil
}

// RecvFD reads up to len(buf) regular bytes from conn along with at most
// one ancillary file descriptor, returning it as an *os.File named name
// (purely for Stat/Close bookkeeping — it carries no filesystem identity
// of its own). ok is false if no descriptor was attached, matching the
// REUSE_FD case where the peer intentionally sends none.
func RecvFD(conn net.Conn, buf []byte, name string) (n int, f *os.File, ok bool, err error) {
	uc, isUnix := conn.(*net.UnixConn)
	if !isUnix {
		return 0, nil, false, fmt.Errorf("transport: RecvFD requires a unix socket, got %T", conn)
	}
	oob := make([]byte, maxAncillaryBytes)
	n, oobn, _, _, err := uc.ReadMsgUnix(buf, oob)
	if err != nil {
		return n, nil, false, fmt.Errorf("transport: recvmsg: %w", err)
	}
	if oobn == 0 {
		return n, nil, false, nil
	}
	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return n, nil, false, fmt.Errorf("transport: parse control message: %w", err)
	}
	for _, scm := range scms {
		fds, err := unix.ParseUnixRights(&scm)
		if err != nil || len(fds) == 0 {
			continue
		}
		return n, os.NewFile(uintptr(fds[0]), name), true, nil
	}
	return n, nil, false, nil
}
