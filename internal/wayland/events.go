package wayland

import (
	"fmt"

	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// RegistryEvent is one typed wl_registry event.
type RegistryEvent interface {
	registryEvent()
}

// GlobalEvent advertises a global.
type GlobalEvent struct {
	Name      uint32
	Interface string
	Version   uint32
}

// GlobalRemoveEvent withdraws a global.
type GlobalRemoveEvent struct {
	Name uint32
}

// UnknownRegistryEvent is an opcode newer than the modeled schema. It is a
// no-op.
type UnknownRegistryEvent struct {
	Opcode uint16
}

func (GlobalEvent) registryEvent()          {}
func (GlobalRemoveEvent) registryEvent()    {}
func (UnknownRegistryEvent) registryEvent() {}

// ParseRegistryEvent decodes msg against the wl_registry schema. A known
// opcode that fails to decode returns ErrMalformedEvent.
func ParseRegistryEvent(msg wire.Message) (RegistryEvent, error) {
	op := msg.Header.Opcode
	if _, ok := schema.Registry.Event(op); !ok {
		return UnknownRegistryEvent{Opcode: op}, nil
	}
	args, err := schema.DecodeEvent(schema.Registry, op, msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	switch op {
	case schema.RegistryEventGlobal:
		if args[1].Null {
			return nil, fmt.Errorf("%w: wl_registry.global name=%d has null interface", ErrMalformedEvent, args[0].Word)
		}
		return GlobalEvent{Name: args[0].Word, Interface: args[1].String, Version: args[2].Word}, nil
	case schema.RegistryEventGlobalRemove:
		return GlobalRemoveEvent{Name: args[0].Word}, nil
	}
	return UnknownRegistryEvent{Opcode: op}, nil
}
