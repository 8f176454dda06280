package wayland

import (
	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// Proxy is a bound global whose interface is not modeled. Its events are
// dropped.
type Proxy struct {
	id      ObjectID
	name    uint32
	iface   string
	version uint32
}

func (p *Proxy) ID() ObjectID {
	return p.id
}

// Name is the registry name the proxy was bound from.
func (p *Proxy) Name() uint32 {
	return p.name
}

func (p *Proxy) InterfaceName() string {
	return p.iface
}

func (p *Proxy) Version() uint32 {
	return p.version
}

func (p *Proxy) Interface() schema.Interface {
	return schema.Interface{Name: p.iface, Version: p.version}
}

func (p *Proxy) Dispatch(msg wire.Message) error {
	logs.Tracef("wayland.Proxy dropping event interface=%s object=%d opcode=%d", p.iface, p.id, msg.Header.Opcode)
	return nil
}

func (p *Proxy) Destroyed(id ObjectID) error {
	logs.Debugf("wayland.Proxy destroyed interface=%s object=%d", p.iface, id)
	return nil
}
