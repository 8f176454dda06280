package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShortArgument   = errors.New("wire: short argument")
	ErrTrailingBytes   = errors.New("wire: trailing bytes after arguments")
	ErrInvalidString   = errors.New("wire: string contains NUL")
	ErrUnsupportedKind = errors.New("wire: unsupported argument kind")
)

// ArgKind is the wire type of one message argument.
type ArgKind uint8

const (
	ArgInt ArgKind = iota + 1
	ArgUint
	ArgFixed
	ArgString
	ArgObject
	ArgNewID
	ArgArray
	ArgFD
)

func (k ArgKind) String() string {
	switch k {
	case ArgInt:
		return "int"
	case ArgUint:
		return "uint"
	case ArgFixed:
		return "fixed"
	case ArgString:
		return "string"
	case ArgObject:
		return "object"
	case ArgNewID:
		return "new_id"
	case ArgArray:
		return "array"
	case ArgFD:
		return "fd"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Arg is one decoded argument. Word carries int, uint, fixed, object and
// new_id values; String and Array carry the variable-length kinds.
type Arg struct {
	Kind   ArgKind
	Word   uint32
	String string
	Null   bool
	Array  []byte
}

// Int creates an int argument.
func Int(v int32) Arg {
	return Arg{Kind: ArgInt, Word: uint32(v)}
}

// Uint creates a uint argument.
func Uint(v uint32) Arg {
	return Arg{Kind: ArgUint, Word: v}
}

// Object creates an object reference argument.
func Object(id uint32) Arg {
	return Arg{Kind: ArgObject, Word: id}
}

// NewID creates a new_id argument.
func NewID(id uint32) Arg {
	return Arg{Kind: ArgNewID, Word: id}
}

// String creates a non-null string argument.
func String(s string) Arg {
	return Arg{Kind: ArgString, String: s}
}

// NullString creates a null string argument.
func NullString() Arg {
	return Arg{Kind: ArgString, Null: true}
}

// Fixed creates a 24.8 fixed-point argument.
func Fixed(v float64) Arg {
	return Arg{Kind: ArgFixed, Word: uint32(int32(v * 256))}
}

// Array creates an array argument.
func Array(b []byte) Arg {
	return Arg{Kind: ArgArray, Array: append([]byte(nil), b...)}
}

// Int returns the argument word as a signed integer.
func (a Arg) Int() int32 {
	return int32(a.Word)
}

// Fixed returns the argument word as a 24.8 fixed-point value.
func (a Arg) Fixed() float64 {
	return float64(int32(a.Word)) / 256
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

// EncodeArgs serializes args in order. fd arguments are rejected because they
// travel out-of-band.
func EncodeArgs(args []Arg) ([]byte, error) {
	out := make([]byte, 0, 4*len(args))
	for i, a := range args {
		switch a.Kind {
		case ArgInt, ArgUint, ArgFixed, ArgObject, ArgNewID:
			out = binary.NativeEndian.AppendUint32(out, a.Word)
		case ArgString:
			if a.Null {
				out = binary.NativeEndian.AppendUint32(out, 0)
				continue
			}
			if strings.IndexByte(a.String, 0) >= 0 {
				return nil, fmt.Errorf("%w: arg %d", ErrInvalidString, i)
			}
			n := len(a.String) + 1
			out = binary.NativeEndian.AppendUint32(out, uint32(n))
			out = AppendCString(out, a.String)
			out = append(out, make([]byte, pad4(n)-n)...)
		case ArgArray:
			out = binary.NativeEndian.AppendUint32(out, uint32(len(a.Array)))
			out = append(out, a.Array...)
			out = append(out, make([]byte, pad4(len(a.Array))-len(a.Array))...)
		default:
			return nil, fmt.Errorf("%w: arg %d %s", ErrUnsupportedKind, i, a.Kind)
		}
	}
	return out, nil
}

// DecodeArgs decodes payload against the signature kinds. The payload must be
// consumed exactly.
func DecodeArgs(payload []byte, kinds []ArgKind) ([]Arg, error) {
	args := make([]Arg, 0, len(kinds))
	i := 0
	word := func() (uint32, error) {
		if len(payload)-i < 4 {
			return 0, ErrShortArgument
		}
		v := binary.NativeEndian.Uint32(payload[i : i+4])
		i += 4
		return v, nil
	}
	for idx, kind := range kinds {
		switch kind {
		case ArgInt, ArgUint, ArgFixed, ArgObject, ArgNewID:
			v, err := word()
			if err != nil {
				return nil, fmt.Errorf("arg %d %s: %w", idx, kind, err)
			}
			args = append(args, Arg{Kind: kind, Word: v})
		case ArgString:
			n, err := word()
			if err != nil {
				return nil, fmt.Errorf("arg %d %s: %w", idx, kind, err)
			}
			if n == 0 {
				args = append(args, Arg{Kind: kind, Null: true})
				continue
			}
			if uint64(len(payload)-i) < uint64(pad4(int(n))) {
				return nil, fmt.Errorf("arg %d %s: %w", idx, kind, ErrShortArgument)
			}
			raw := payload[i : i+int(n)]
			if raw[n-1] != 0 {
				return nil, fmt.Errorf("arg %d %s: %w", idx, kind, ErrUnterminatedString)
			}
			s, err := CString(raw)
			if err != nil {
				return nil, fmt.Errorf("arg %d %s: %w", idx, kind, err)
			}
			i += pad4(int(n))
			args = append(args, Arg{Kind: kind, String: s})
		case ArgArray:
			n, err := word()
			if err != nil {
				return nil, fmt.Errorf("arg %d %s: %w", idx, kind, err)
			}
			if uint64(len(payload)-i) < uint64(pad4(int(n))) {
				return nil, fmt.Errorf("arg %d %s: %w", idx, kind, ErrShortArgument)
			}
			buf := make([]byte, n)
			copy(buf, payload[i:i+int(n)])
			i += pad4(int(n))
			args = append(args, Arg{Kind: kind, Array: buf})
		case ArgFD:
			args = append(args, Arg{Kind: kind})
		default:
			return nil, fmt.Errorf("arg %d: %w: %s", idx, ErrUnsupportedKind, kind)
		}
	}
	if i != len(payload) {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, len(payload)-i)
	}
	return args, nil
}
