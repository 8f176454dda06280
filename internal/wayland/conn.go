package wayland

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/observability"
	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// Handler is the event sink for one object identity.
type Handler interface {
	Interface() schema.Interface
	Dispatch(msg wire.Message) error
}

// Destroyer is implemented by handlers that want to observe delete_id for
// their identity. A non-nil error is fatal to the connection.
type Destroyer interface {
	Destroyed(id ObjectID) error
}

// peerCredentials is the handoff step run on every new socket.
var peerCredentials = readPeerCred

// Options tunes a connection.
type Options struct {
	Limits wire.Limits
	// OnViolation receives recoverable consistency violations. Defaults to a
	// warning log.
	OnViolation func(error)
}

func DefaultOptions() Options {
	return Options{Limits: wire.DefaultLimits()}
}

// Conn is one live compositor connection.
type Conn struct {
	sock        *net.UnixConn
	path        string
	peer        PeerCred
	reader      *bufio.Reader
	limits      wire.Limits
	onViolation func(error)

	wmu  sync.Mutex
	pump sync.Mutex

	mu      sync.Mutex
	objects map[ObjectID]Handler
	ids     idAllocator

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// failed holds the first fatal error. Once set, the stream cannot be
	// resynchronized and every later send or dispatch returns it.
	failed atomic.Pointer[error]
}

func newConn(sock *net.UnixConn, path string, opts Options) (*Conn, error) {
	peer, err := peerCredentials(sock)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProtocolHandshakeFailed, path, err)
	}
	if opts.Limits.MaxMessageBytes <= 0 {
		opts.Limits = wire.DefaultLimits()
	}
	c := &Conn{
		sock:        sock,
		path:        path,
		peer:        peer,
		reader:      bufio.NewReaderSize(newSocketReader(sock), opts.Limits.MaxMessageBytes),
		limits:      opts.Limits,
		onViolation: opts.OnViolation,
		objects:     make(map[ObjectID]Handler),
		ids:         newIDAllocator(),
	}
	if c.onViolation == nil {
		c.onViolation = func(err error) {
			logs.Warnf("wayland.Conn consistency violation: %v", err)
		}
	}
	c.objects[DisplayID] = &displayHandler{conn: c}
	return c, nil
}

// Path is the socket path this connection dialed.
func (c *Conn) Path() string {
	return c.path
}

// Peer returns the compositor's process credentials.
func (c *Conn) Peer() PeerCred {
	return c.peer
}

// Err returns the error that failed the connection, or nil while it is
// healthy.
func (c *Conn) Err() error {
	if p := c.failed.Load(); p != nil {
		return *p
	}
	return nil
}

// fail records err as the connection's fatal error unless one is already set,
// and returns the recorded error.
func (c *Conn) fail(err error) error {
	if c.failed.CompareAndSwap(nil, &err) {
		if !errors.Is(err, ErrClosed) {
			logs.Errf("wayland.Conn failed path=%s: %v", c.path, err)
		}
		return err
	}
	return c.Err()
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.closeErr = c.sock.Close()
	})
	return c.closeErr
}

func (c *Conn) newObject(h Handler) (ObjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.ids.alloc()
	if err != nil {
		return 0, err
	}
	c.objects[id] = h
	return id, nil
}

func (c *Conn) dropObject(id ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, id)
	c.ids.release(id)
}

func (c *Conn) handler(id ObjectID) (Handler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.objects[id]
	return h, ok
}

// send encodes one request against iface and writes it atomically.
func (c *Conn) send(id ObjectID, iface schema.Interface, opcode uint16, args ...wire.Arg) error {
	if err := c.Err(); err != nil {
		return err
	}
	if c.closing.Load() {
		return ErrClosed
	}
	payload, err := schema.EncodeRequest(iface, opcode, args)
	if err != nil {
		return err
	}
	msg := wire.Message{
		Header:  wire.Header{ObjectID: uint32(id), Opcode: opcode},
		Payload: payload,
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := wire.WriteMessage(c.sock, msg, c.limits); err != nil {
		return c.fail(fmt.Errorf("wayland: send %s opcode=%d: %w", iface.Name, opcode, err))
	}
	logs.Tracef("wayland.Conn sent object=%d interface=%s opcode=%d", id, iface.Name, opcode)
	return nil
}

// GetRegistry creates the registry object and asks the compositor to
// advertise its globals to it. Call Roundtrip to wait for the initial set.
func (c *Conn) GetRegistry(opts ...RegistryOption) (*Registry, error) {
	r := newRegistry(c, opts...)
	id, err := c.newObject(r)
	if err != nil {
		return nil, err
	}
	r.id = id
	if err := c.send(DisplayID, schema.Display, schema.DisplayGetRegistry, wire.NewID(uint32(id))); err != nil {
		c.dropObject(id)
		return nil, err
	}
	logs.Debugf("wayland.Conn get_registry id=%d", id)
	return r, nil
}

// Sync sends a sync marker and returns the callback that completes when the
// compositor has processed every earlier request.
func (c *Conn) Sync() (*Callback, error) {
	cb := &Callback{}
	id, err := c.newObject(cb)
	if err != nil {
		return nil, err
	}
	cb.id = id
	if err := c.send(DisplayID, schema.Display, schema.DisplaySync, wire.NewID(uint32(id))); err != nil {
		c.dropObject(id)
		return nil, err
	}
	return cb, nil
}

// Roundtrip blocks until the compositor has processed all requests sent so
// far and every resulting event has been dispatched.
func (c *Conn) Roundtrip() error {
	c.pump.Lock()
	defer c.pump.Unlock()

	start := time.Now()
	err := c.roundtrip()
	observability.RecordRoundtrip(time.Since(start), err == nil)
	if err != nil {
		logs.Errf("wayland.Conn roundtrip failed: %v", err)
		return fmt.Errorf("%w: %w", ErrRoundtripFailed, err)
	}
	return nil
}

func (c *Conn) roundtrip() error {
	if err := c.Err(); err != nil {
		return err
	}
	cb, err := c.Sync()
	if err != nil {
		return err
	}
	for !cb.Done() {
		if err := c.dispatchOne(); err != nil {
			return err
		}
	}
	logs.Debugf("wayland.Conn roundtrip done callback=%d serial=%d", cb.id, cb.Data())
	return nil
}

// DispatchOne reads and dispatches exactly one message.
func (c *Conn) DispatchOne() error {
	c.pump.Lock()
	defer c.pump.Unlock()
	return c.dispatchOne()
}

// Run dispatches messages until the connection fails or is closed. It holds
// the pump for its whole duration.
func (c *Conn) Run() error {
	c.pump.Lock()
	defer c.pump.Unlock()
	for {
		if err := c.dispatchOne(); err != nil {
			return err
		}
	}
}

func (c *Conn) dispatchOne() error {
	if err := c.Err(); err != nil {
		return err
	}
	msg, err := wire.ReadMessage(c.reader, c.limits)
	if err != nil {
		return c.fail(c.readError(err))
	}

	id := ObjectID(msg.Header.ObjectID)
	h, ok := c.handler(id)
	if !ok {
		// Events may still arrive for objects released locally.
		logs.Debugf("wayland.Conn event for unknown object=%d opcode=%d", id, msg.Header.Opcode)
		return nil
	}

	name := h.Interface().EventName(msg.Header.Opcode)
	logs.Tracef("wayland.Conn dispatch object=%d event=%s", id, name)
	err = h.Dispatch(msg)
	observability.RecordEvent(name)
	if err == nil {
		return nil
	}
	var cerr *ConsistencyError
	if errors.As(err, &cerr) {
		observability.RecordConsistencyViolation(cerr.Kind)
		c.onViolation(err)
		return nil
	}
	return c.fail(err)
}

func (c *Conn) readError(err error) error {
	if c.closing.Load() {
		return ErrClosed
	}
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, wire.ErrShortHeader), errors.Is(err, wire.ErrShortPayload):
		return fmt.Errorf("%w: compositor hung up: %w", ErrClosed, err)
	case errors.Is(err, wire.ErrInvalidSize), errors.Is(err, wire.ErrMessageTooLarge):
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return err
}

// deleteID handles wl_display.delete_id: the compositor is done with id and
// it may be reused.
func (c *Conn) deleteID(id ObjectID) error {
	c.mu.Lock()
	h, ok := c.objects[id]
	delete(c.objects, id)
	c.ids.release(id)
	c.mu.Unlock()
	if !ok {
		logs.Debugf("wayland.Conn delete_id for unknown object=%d", id)
		return nil
	}
	if d, ok := h.(Destroyer); ok {
		return d.Destroyed(id)
	}
	return nil
}
