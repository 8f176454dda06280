package wayland

import (
	"fmt"
	"sync"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/observability"
	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// Global is one capability advertised by the compositor.
type Global struct {
	Name      uint32 `json:"name" toml:"name"`
	Interface string `json:"interface" toml:"interface"`
	Version   uint32 `json:"version" toml:"version"`
}

// RegistryOption configures a Registry at creation.
type RegistryOption func(*Registry)

// WithObserver registers fn to receive every applied registry event. fn runs
// on the dispatching goroutine after the state lock is released.
func WithObserver(fn func(RegistryEvent)) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.observers = append(r.observers, fn)
		}
	}
}

// Registry is the wl_registry object and the globals it has seen.
//
// A repeated global name replaces the live entry in place and is reported as
// a ConsistencyError. A global_remove for an unknown name leaves the state
// untouched and is reported the same way.
type Registry struct {
	id        ObjectID
	conn      *Conn
	observers []func(RegistryEvent)

	mu      sync.Mutex
	globals []Global
}

func newRegistry(conn *Conn, opts ...RegistryOption) *Registry {
	r := &Registry{conn: conn, globals: make([]Global, 0)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) ID() ObjectID {
	return r.id
}

func (r *Registry) Interface() schema.Interface {
	return schema.Registry
}

// Dispatch parses one wl_registry event and applies it.
func (r *Registry) Dispatch(msg wire.Message) error {
	ev, err := ParseRegistryEvent(msg)
	if err != nil {
		logs.Errf("wayland.Registry dispatch object=%d: %v", r.id, err)
		return err
	}
	return r.apply(ev)
}

// Destroyed is only legal while the connection is tearing down.
func (r *Registry) Destroyed(id ObjectID) error {
	if r.conn != nil && r.conn.closing.Load() {
		return nil
	}
	return fmt.Errorf("%w: wl_registry object=%d", ErrUnexpectedDestroy, id)
}

func (r *Registry) apply(ev RegistryEvent) error {
	var (
		n      int
		err    error
		notify bool
	)
	switch e := ev.(type) {
	case GlobalEvent:
		n, err = r.add(Global{Name: e.Name, Interface: e.Interface, Version: e.Version})
		notify = true
		logs.Debugf("wayland.Registry global name=%d interface=%s version=%d", e.Name, e.Interface, e.Version)
	case GlobalRemoveEvent:
		n, err = r.remove(e.Name)
		notify = err == nil
		logs.Debugf("wayland.Registry global_remove name=%d", e.Name)
	default:
		return nil
	}
	observability.SetGlobals(n)
	if notify {
		for _, fn := range r.observers {
			fn(ev)
		}
	}
	return err
}

func (r *Registry) add(g Global) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.globals {
		if r.globals[i].Name == g.Name {
			r.globals[i] = g
			return len(r.globals), &ConsistencyError{Kind: ViolationDuplicateName, Name: g.Name, Interface: g.Interface}
		}
	}
	r.globals = append(r.globals, g)
	return len(r.globals), nil
}

func (r *Registry) remove(name uint32) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.globals {
		if r.globals[i].Name == name {
			r.globals = append(r.globals[:i], r.globals[i+1:]...)
			return len(r.globals), nil
		}
	}
	return len(r.globals), &ConsistencyError{Kind: ViolationUnknownName, Name: name}
}

// Globals returns a copy of the live globals in advertisement order.
func (r *Registry) Globals() []Global {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Global, len(r.globals))
	copy(out, r.globals)
	return out
}

// Lookup returns the first advertised global implementing iface at
// minVersion or newer.
func (r *Registry) Lookup(iface string, minVersion uint32) (Global, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.globals {
		if g.Interface == iface && g.Version >= minVersion {
			return g, true
		}
	}
	return Global{}, false
}

func (r *Registry) byName(name uint32) (Global, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.globals {
		if g.Name == name {
			return g, true
		}
	}
	return Global{}, false
}

// Bind binds the live global name at version and returns its proxy.
func (r *Registry) Bind(name uint32, iface string, version uint32) (*Proxy, error) {
	if r.conn == nil {
		return nil, ErrClosed
	}
	g, ok := r.byName(name)
	if !ok {
		return nil, fmt.Errorf("%w: name=%d", ErrUnknownGlobal, name)
	}
	if g.Interface != iface {
		return nil, fmt.Errorf("%w: name=%d is %q, not %q", ErrUnknownGlobal, name, g.Interface, iface)
	}
	if version == 0 || version > g.Version {
		return nil, fmt.Errorf("%w: %s version=%d advertised=%d", ErrVersionUnsupported, iface, version, g.Version)
	}

	p := &Proxy{name: name, iface: iface, version: version}
	id, err := r.conn.newObject(p)
	if err != nil {
		return nil, err
	}
	p.id = id
	err = r.conn.send(r.id, schema.Registry, schema.RegistryBind,
		wire.Uint(name),
		wire.String(iface),
		wire.Uint(version),
		wire.NewID(uint32(id)),
	)
	if err != nil {
		r.conn.dropObject(id)
		return nil, err
	}
	logs.Infof("wayland.Registry bind name=%d interface=%s version=%d id=%d", name, iface, version, id)
	return p, nil
}

// BindInterface looks up iface at minVersion and binds it at minVersion, or
// at the advertised version when minVersion is 0.
func (r *Registry) BindInterface(iface string, minVersion uint32) (*Proxy, error) {
	g, ok := r.Lookup(iface, minVersion)
	if !ok {
		return nil, fmt.Errorf("%w: %s version>=%d", ErrUnknownGlobal, iface, minVersion)
	}
	version := minVersion
	if version == 0 {
		version = g.Version
	}
	return r.Bind(g.Name, g.Interface, version)
}
