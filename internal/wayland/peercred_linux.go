//go:build linux

package wayland

import (
	"net"

	"golang.org/x/sys/unix"
)

func readPeerCred(sock *net.UnixConn) (PeerCred, error) {
	raw, err := sock.SyscallConn()
	if err != nil {
		return PeerCred{}, err
	}
	var (
		cred    *unix.Ucred
		credErr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return PeerCred{}, err
	}
	if credErr != nil {
		return PeerCred{}, credErr
	}
	return PeerCred{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, nil
}
