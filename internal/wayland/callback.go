package wayland

import (
	"fmt"
	"sync/atomic"

	"github.com/danmuck/wlprobe/internal/protocol/schema"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
)

// Callback is a wl_callback created by Sync.
type Callback struct {
	id   ObjectID
	done atomic.Bool
	data atomic.Uint32
}

func (cb *Callback) ID() ObjectID {
	return cb.id
}

// Done reports whether the done event has been dispatched.
func (cb *Callback) Done() bool {
	return cb.done.Load()
}

// Data is the callback_data carried by done (the event serial for sync).
func (cb *Callback) Data() uint32 {
	return cb.data.Load()
}

func (cb *Callback) Interface() schema.Interface {
	return schema.Callback
}

func (cb *Callback) Dispatch(msg wire.Message) error {
	if msg.Header.Opcode != schema.CallbackEventDone {
		return nil
	}
	args, err := schema.DecodeEvent(schema.Callback, msg.Header.Opcode, msg.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	cb.data.Store(args[0].Word)
	cb.done.Store(true)
	return nil
}
