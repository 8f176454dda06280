package schema

import (
	"fmt"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// Well-known object id of the display singleton.
const DisplayID uint32 = 1

// wl_display opcodes.
const (
	DisplaySync        uint16 = 0
	DisplayGetRegistry uint16 = 1

	DisplayEventError    uint16 = 0
	DisplayEventDeleteID uint16 = 1
)

// wl_registry opcodes.
const (
	RegistryBind uint16 = 0

	RegistryEventGlobal       uint16 = 0
	RegistryEventGlobalRemove uint16 = 1
)

// wl_callback opcodes.
const (
	CallbackEventDone uint16 = 0
)

// Message is one request or event signature.
type Message struct {
	Name string
	Args []wire.ArgKind
}

// Interface is the static schema for one protocol interface. Requests and
// Events are indexed by opcode.
type Interface struct {
	Name     string
	Version  uint32
	Requests []Message
	Events   []Message
}

var Display = Interface{
	Name:    "wl_display",
	Version: 1,
	Requests: []Message{
		{Name: "sync", Args: []wire.ArgKind{wire.ArgNewID}},
		{Name: "get_registry", Args: []wire.ArgKind{wire.ArgNewID}},
	},
	Events: []Message{
		{Name: "error", Args: []wire.ArgKind{wire.ArgObject, wire.ArgUint, wire.ArgString}},
		{Name: "delete_id", Args: []wire.ArgKind{wire.ArgUint}},
	},
}

var Registry = Interface{
	Name:    "wl_registry",
	Version: 1,
	Requests: []Message{
		// new_id without a fixed interface is sent as (interface, version, id).
		{Name: "bind", Args: []wire.ArgKind{wire.ArgUint, wire.ArgString, wire.ArgUint, wire.ArgNewID}},
	},
	Events: []Message{
		{Name: "global", Args: []wire.ArgKind{wire.ArgUint, wire.ArgString, wire.ArgUint}},
		{Name: "global_remove", Args: []wire.ArgKind{wire.ArgUint}},
	},
}

var Callback = Interface{
	Name:    "wl_callback",
	Version: 1,
	Events: []Message{
		{Name: "done", Args: []wire.ArgKind{wire.ArgUint}},
	},
}

// Event returns the event signature for opcode.
func (i Interface) Event(opcode uint16) (Message, bool) {
	if int(opcode) >= len(i.Events) {
		return Message{}, false
	}
	return i.Events[opcode], true
}

// Request returns the request signature for opcode.
func (i Interface) Request(opcode uint16) (Message, bool) {
	if int(opcode) >= len(i.Requests) {
		return Message{}, false
	}
	return i.Requests[opcode], true
}

// EventName is a log-friendly label such as "wl_registry.global".
func (i Interface) EventName(opcode uint16) string {
	if m, ok := i.Event(opcode); ok {
		return i.Name + "." + m.Name
	}
	return fmt.Sprintf("%s.event(%d)", i.Name, opcode)
}

type ValidationError struct {
	Interface string
	Opcode    uint16
	Reason    string
	Err       error
}

func (e ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema: %s opcode=%d: %s: %v", e.Interface, e.Opcode, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema: %s opcode=%d: %s", e.Interface, e.Opcode, e.Reason)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// DecodeEvent decodes an event payload against the interface signature.
func DecodeEvent(iface Interface, opcode uint16, payload []byte) ([]wire.Arg, error) {
	logs.Debugf("schema.DecodeEvent interface=%s opcode=%d bytes=%d", iface.Name, opcode, len(payload))
	sig, ok := iface.Event(opcode)
	if !ok {
		return nil, ValidationError{Interface: iface.Name, Opcode: opcode, Reason: "unknown event opcode"}
	}
	args, err := wire.DecodeArgs(payload, sig.Args)
	if err != nil {
		logs.Errf("schema.DecodeEvent malformed interface=%s event=%s err=%v", iface.Name, sig.Name, err)
		return nil, ValidationError{Interface: iface.Name, Opcode: opcode, Reason: "malformed " + sig.Name, Err: err}
	}
	return args, nil
}

// EncodeRequest validates args against the request signature and serializes them.
func EncodeRequest(iface Interface, opcode uint16, args []wire.Arg) ([]byte, error) {
	sig, ok := iface.Request(opcode)
	if !ok {
		return nil, ValidationError{Interface: iface.Name, Opcode: opcode, Reason: "unknown request opcode"}
	}
	if len(args) != len(sig.Args) {
		return nil, ValidationError{
			Interface: iface.Name,
			Opcode:    opcode,
			Reason:    fmt.Sprintf("%s wants %d args, got %d", sig.Name, len(sig.Args), len(args)),
		}
	}
	for idx, kind := range sig.Args {
		if args[idx].Kind != kind {
			return nil, ValidationError{
				Interface: iface.Name,
				Opcode:    opcode,
				Reason:    fmt.Sprintf("%s arg %d is %s, want %s", sig.Name, idx, args[idx].Kind, kind),
			}
		}
	}
	return wire.EncodeArgs(args)
}
