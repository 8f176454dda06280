package fakewl

import (
	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// RawMsg frames payload without validating it, so tests can send malformed
// messages.
func RawMsg(objectID uint32, opcode uint16, payload []byte) []byte {
	hb := wire.EncodeHeader(wire.Header{
		ObjectID: objectID,
		Opcode:   opcode,
		Size:     uint16(wire.HeaderLen + len(payload)),
	})
	return append(hb[:], payload...)
}

func event(objectID uint32, opcode uint16, args ...wire.Arg) []byte {
	payload, err := wire.EncodeArgs(args)
	if err != nil {
		panic(err)
	}
	return RawMsg(objectID, opcode, payload)
}

func GlobalMsg(registryID, name uint32, iface string, version uint32) []byte {
	return event(registryID, schema.RegistryEventGlobal, wire.Uint(name), wire.String(iface), wire.Uint(version))
}

func GlobalRemoveMsg(registryID, name uint32) []byte {
	return event(registryID, schema.RegistryEventGlobalRemove, wire.Uint(name))
}

func CallbackDoneMsg(callbackID, data uint32) []byte {
	return event(callbackID, schema.CallbackEventDone, wire.Uint(data))
}

func DeleteIDMsg(id uint32) []byte {
	return event(schema.DisplayID, schema.DisplayEventDeleteID, wire.Uint(id))
}

func DisplayErrorMsg(objectID, code uint32, message string) []byte {
	return event(schema.DisplayID, schema.DisplayEventError, wire.Object(objectID), wire.Uint(code), wire.String(message))
}
