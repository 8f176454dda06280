package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderLen = 8

	// DefaultMaxMessageBytes matches the connection buffer size used by libwayland.
	DefaultMaxMessageBytes = 4096

	// MaxFrameBytes is the largest size the 16-bit header field can carry.
	MaxFrameBytes = 0xFFFF
)

var (
	ErrShortHeader     = errors.New("wire: short message header")
	ErrShortPayload    = errors.New("wire: short message payload")
	ErrInvalidSize     = errors.New("wire: invalid message size")
	ErrMessageTooLarge = errors.New("wire: message too large")
)

// Header is the fixed 8-byte message header.
type Header struct {
	ObjectID uint32
	Opcode   uint16
	Size     uint16
}

// Message is one complete wire message addressed to a single object.
type Message struct {
	Header  Header
	Payload []byte
}

// Limits constrains message decode/encode memory use.
type Limits struct {
	MaxMessageBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxMessageBytes: DefaultMaxMessageBytes}
}

func (l Limits) max() int {
	if l.MaxMessageBytes <= 0 || l.MaxMessageBytes > MaxFrameBytes {
		return DefaultMaxMessageBytes
	}
	return l.MaxMessageBytes
}

// ReadMessage reads one message. A clean end of stream before any header byte
// returns io.EOF.
func ReadMessage(r io.Reader, limits Limits) (Message, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, ErrShortHeader
		}
		return Message{}, err
	}

	h := DecodeHeader(fixed)
	if int(h.Size) < HeaderLen || h.Size%4 != 0 {
		return Message{}, fmt.Errorf("%w: %d", ErrInvalidSize, h.Size)
	}
	if int(h.Size) > limits.max() {
		return Message{}, fmt.Errorf("%w: %d", ErrMessageTooLarge, h.Size)
	}

	payload := make([]byte, int(h.Size)-HeaderLen)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Message{}, ErrShortPayload
			}
			return Message{}, err
		}
	}
	return Message{Header: h, Payload: payload}, nil
}

// WriteMessage writes header and payload with a single Write call so a
// message is never interleaved with another writer's bytes.
func WriteMessage(w io.Writer, m Message, limits Limits) error {
	b, err := EncodeMessage(m, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// EncodeMessage returns the wire bytes for m, filling in Header.Size.
func EncodeMessage(m Message, limits Limits) ([]byte, error) {
	size := HeaderLen + len(m.Payload)
	if len(m.Payload)%4 != 0 {
		return nil, fmt.Errorf("%w: payload length %d not 4-byte aligned", ErrInvalidSize, len(m.Payload))
	}
	if size > limits.max() {
		return nil, fmt.Errorf("%w: %d", ErrMessageTooLarge, size)
	}
	h := m.Header
	h.Size = uint16(size)
	buf := make([]byte, size)
	hb := EncodeHeader(h)
	copy(buf, hb[:])
	copy(buf[HeaderLen:], m.Payload)
	return buf, nil
}

func EncodeHeader(h Header) [HeaderLen]byte {
	var buf [HeaderLen]byte
	binary.NativeEndian.PutUint32(buf[0:4], h.ObjectID)
	binary.NativeEndian.PutUint32(buf[4:8], uint32(h.Size)<<16|uint32(h.Opcode))
	return buf
}

func DecodeHeader(b [HeaderLen]byte) Header {
	word := binary.NativeEndian.Uint32(b[4:8])
	return Header{
		ObjectID: binary.NativeEndian.Uint32(b[0:4]),
		Opcode:   uint16(word & 0xFFFF),
		Size:     uint16(word >> 16),
	}
}
