package wayland

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	logs "github.com/danmuck/wlprobe/internal/logging"
)

const (
	EnvRuntimeDir = "XDG_RUNTIME_DIR"
	EnvDisplay    = "WAYLAND_DISPLAY"
)

// ResolveSocketPath picks the compositor socket. An explicit path wins;
// otherwise both runtimeDir and display are required and joined. An absolute
// display is used as the path itself.
func ResolveSocketPath(explicit, runtimeDir, display string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, nil
	}
	runtimeDir = strings.TrimSpace(runtimeDir)
	display = strings.TrimSpace(display)
	if runtimeDir == "" {
		return "", fmt.Errorf("%w: %s not set", ErrConfigurationMissing, EnvRuntimeDir)
	}
	if display == "" {
		return "", fmt.Errorf("%w: %s not set", ErrConfigurationMissing, EnvDisplay)
	}
	if filepath.IsAbs(display) {
		return display, nil
	}
	return filepath.Join(runtimeDir, display), nil
}

// SocketPathFromEnv resolves the socket path from XDG_RUNTIME_DIR and
// WAYLAND_DISPLAY unless explicit is set.
func SocketPathFromEnv(explicit string) (string, error) {
	return ResolveSocketPath(explicit, os.Getenv(EnvRuntimeDir), os.Getenv(EnvDisplay))
}

// ConnectToEnv resolves the socket path from the environment and dials it.
func ConnectToEnv(opts Options) (*Conn, error) {
	path, err := SocketPathFromEnv("")
	if err != nil {
		return nil, err
	}
	return Dial(path, opts)
}

// Dial makes exactly one connection attempt to path. There is no retry and
// no timeout.
func Dial(path string, opts Options) (*Conn, error) {
	sock, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		logs.Warnf("wayland.Dial path=%q err=%v", path, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransportUnavailable, path, err)
	}
	conn, err := newConn(sock, path, opts)
	if err != nil {
		_ = sock.Close()
		return nil, err
	}
	logs.Infof("wayland.Dial connected path=%q peer_pid=%d peer_uid=%d", path, conn.peer.PID, conn.peer.UID)
	return conn, nil
}
