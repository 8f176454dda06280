package wayland

import (
	"io"
	"net"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"golang.org/x/sys/unix"
)

// maxFDsPerMessage mirrors libwayland's per-message descriptor cap.
const maxFDsPerMessage = 28

// PeerCred identifies the process on the other end of the socket.
type PeerCred struct {
	PID int32
	UID uint32
	GID uint32
}

// socketReader reads the byte stream and closes any descriptors the
// compositor passes, since no handled event consumes them.
type socketReader struct {
	sock *net.UnixConn
	oob  []byte
}

func newSocketReader(sock *net.UnixConn) *socketReader {
	return &socketReader{
		sock: sock,
		oob:  make([]byte, unix.CmsgSpace(maxFDsPerMessage*4)),
	}
}

func (r *socketReader) Read(p []byte) (int, error) {
	n, oobn, _, _, err := r.sock.ReadMsgUnix(p, r.oob)
	if oobn > 0 {
		closeRights(r.oob[:oobn])
	}
	if n < 0 {
		// ReadMsgUnix reports -1 when the socket is closed under a blocked read.
		n = 0
	}
	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

func closeRights(oob []byte) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		logs.Warnf("wayland.socket parse control message err=%v", err)
		return
	}
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			logs.Debugf("wayland.socket closing unsolicited fd=%d", fd)
			_ = unix.Close(fd)
		}
	}
}
