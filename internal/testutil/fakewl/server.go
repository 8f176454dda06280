// Package fakewl is a scripted compositor for tests. It speaks just enough of
// wl_display and wl_registry to drive a client through bootstrap.
package fakewl

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

var ErrNoClient = errors.New("fakewl: no client connected")

type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Bind records one wl_registry.bind request.
type Bind struct {
	Name      uint32
	Interface string
	Version   uint32
	ID        uint32
}

type Hooks struct {
	// OnGetRegistry returns the messages sent after get_registry. When nil the
	// configured globals are advertised.
	OnGetRegistry func(registryID uint32) [][]byte
	// BeforeSyncDone returns messages sent ahead of each callback done.
	BeforeSyncDone func(registryID uint32) [][]byte
}

type Server struct {
	Path string

	dir     string
	ln      *net.UnixListener
	globals []Global
	hooks   Hooks

	wmu sync.Mutex

	mu         sync.Mutex
	conn       net.Conn
	registryID uint32
	binds      []Bind
	syncs      int
	serial     uint32
	closed     bool
}

// Start listens on a fresh socket and serves one client at a time until the
// test ends.
func Start(t testing.TB, globals []Global, hooks Hooks) *Server {
	t.Helper()
	// Short base dir keeps the path under the sun_path limit.
	dir, err := os.MkdirTemp("", "wlt")
	if err != nil {
		t.Fatalf("fakewl: temp dir: %v", err)
	}
	path := filepath.Join(dir, "wayland-0")
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		_ = os.RemoveAll(dir)
		t.Fatalf("fakewl: listen: %v", err)
	}
	s := &Server{
		Path:    path,
		dir:     dir,
		ln:      ln,
		globals: append([]Global(nil), globals...),
		hooks:   hooks,
	}
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Dir is the directory holding the socket, usable as XDG_RUNTIME_DIR.
func (s *Server) Dir() string {
	return s.dir
}

func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.mu.Unlock()
	_ = s.ln.Close()
	if conn != nil {
		_ = conn.Close()
	}
	_ = os.RemoveAll(s.dir)
}

// HangUp closes the current client connection.
func (s *Server) HangUp() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Server) RegistryID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registryID
}

func (s *Server) Binds() []Bind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Bind(nil), s.binds...)
}

func (s *Server) Syncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs
}

// Emit writes raw messages to the connected client.
func (s *Server) Emit(msgs ...[]byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNoClient
	}
	return s.write(conn, msgs)
}

func (s *Server) write(conn net.Conn, msgs [][]byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for _, m := range msgs {
		if _, err := conn.Write(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()
		s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	objects := map[uint32]string{1: schema.Display.Name}
	for {
		msg, err := wire.ReadMessage(conn, wire.DefaultLimits())
		if err != nil {
			return
		}
		switch objects[msg.Header.ObjectID] {
		case schema.Display.Name:
			args, err := wire.DecodeArgs(msg.Payload, []wire.ArgKind{wire.ArgNewID})
			if err != nil {
				return
			}
			id := args[0].Word
			switch msg.Header.Opcode {
			case schema.DisplaySync:
				if err := s.handleSync(conn, id); err != nil {
					return
				}
			case schema.DisplayGetRegistry:
				objects[id] = schema.Registry.Name
				if err := s.handleGetRegistry(conn, id); err != nil {
					return
				}
			}
		case schema.Registry.Name:
			sig, _ := schema.Registry.Request(msg.Header.Opcode)
			args, err := wire.DecodeArgs(msg.Payload, sig.Args)
			if err != nil {
				return
			}
			if len(args) != 4 {
				continue
			}
			b := Bind{Name: args[0].Word, Interface: args[1].String, Version: args[2].Word, ID: args[3].Word}
			objects[b.ID] = b.Interface
			s.mu.Lock()
			s.binds = append(s.binds, b)
			s.mu.Unlock()
		}
	}
}

func (s *Server) handleSync(conn net.Conn, id uint32) error {
	s.mu.Lock()
	s.syncs++
	s.serial++
	serial := s.serial
	registryID := s.registryID
	s.mu.Unlock()

	var msgs [][]byte
	if s.hooks.BeforeSyncDone != nil {
		msgs = append(msgs, s.hooks.BeforeSyncDone(registryID)...)
	}
	msgs = append(msgs, CallbackDoneMsg(id, serial), DeleteIDMsg(id))
	return s.write(conn, msgs)
}

func (s *Server) handleGetRegistry(conn net.Conn, id uint32) error {
	s.mu.Lock()
	s.registryID = id
	s.mu.Unlock()

	if s.hooks.OnGetRegistry != nil {
		return s.write(conn, s.hooks.OnGetRegistry(id))
	}
	msgs := make([][]byte, 0, len(s.globals))
	for _, g := range s.globals {
		msgs = append(msgs, GlobalMsg(id, g.Name, g.Interface, g.Version))
	}
	return s.write(conn, msgs)
}
