package wayland

import (
	"fmt"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// displayHandler handles events on the wl_display singleton.
type displayHandler struct {
	conn *Conn
}

func (d *displayHandler) Interface() schema.Interface {
	return schema.Display
}

func (d *displayHandler) Dispatch(msg wire.Message) error {
	op := msg.Header.Opcode
	if _, ok := schema.Display.Event(op); !ok {
		logs.Debugf("wayland.display ignoring unknown opcode=%d", op)
		return nil
	}
	args, err := schema.DecodeEvent(schema.Display, op, msg.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	switch op {
	case schema.DisplayEventError:
		perr := &ProtocolError{
			ObjectID: ObjectID(args[0].Word),
			Code:     args[1].Word,
			Message:  args[2].String,
		}
		logs.Errf("wayland.display %v", perr)
		return perr
	case schema.DisplayEventDeleteID:
		return d.conn.deleteID(ObjectID(args[0].Word))
	}
	return nil
}
