package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeArgsRoundTrip(t *testing.T) {
	in := []Arg{
		Uint(42),
		Int(-3),
		String("wl_compositor"),
		NullString(),
		Object(9),
		NewID(10),
		Array([]byte{0xAA, 0xBB, 0xCC}),
		Fixed(1.5),
	}
	kinds := []ArgKind{ArgUint, ArgInt, ArgString, ArgString, ArgObject, ArgNewID, ArgArray, ArgFixed}
	payload, err := EncodeArgs(in)
	if err != nil {
		t.Fatalf("encode args: %v", err)
	}
	if len(payload)%4 != 0 {
		t.Fatalf("payload not aligned: %d", len(payload))
	}
	out, err := DecodeArgs(payload, kinds)
	if err != nil {
		t.Fatalf("decode args: %v", err)
	}
	if out[0].Word != 42 || out[1].Int() != -3 {
		t.Fatalf("word args mismatch: %+v %+v", out[0], out[1])
	}
	if out[2].String != "wl_compositor" || out[2].Null {
		t.Fatalf("string mismatch: %+v", out[2])
	}
	if !out[3].Null {
		t.Fatalf("expected null string: %+v", out[3])
	}
	if out[4].Word != 9 || out[5].Word != 10 {
		t.Fatalf("object ids mismatch: %+v %+v", out[4], out[5])
	}
	if !bytes.Equal(out[6].Array, []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("array mismatch: %v", out[6].Array)
	}
	if out[7].Fixed() != 1.5 {
		t.Fatalf("fixed mismatch: %v", out[7].Fixed())
	}
}

func TestEncodeStringPadding(t *testing.T) {
	// "abc" + NUL fits exactly; "abcd" + NUL pads to 8.
	cases := map[string]int{"": 8, "abc": 8, "abcd": 12, "abcdefg": 12}
	for s, want := range cases {
		payload, err := EncodeArgs([]Arg{String(s)})
		if err != nil {
			t.Fatalf("encode %q: %v", s, err)
		}
		if len(payload) != want {
			t.Fatalf("encode %q: got len=%d want=%d", s, len(payload), want)
		}
	}
}

func TestEncodeStringRejectsNUL(t *testing.T) {
	if _, err := EncodeArgs([]Arg{String("a\x00b")}); !errors.Is(err, ErrInvalidString) {
		t.Fatalf("expected ErrInvalidString, got %v", err)
	}
}

func TestEncodeRejectsFD(t *testing.T) {
	if _, err := EncodeArgs([]Arg{{Kind: ArgFD}}); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestDecodeArgsShortWord(t *testing.T) {
	_, err := DecodeArgs([]byte{1, 2}, []ArgKind{ArgUint})
	if !errors.Is(err, ErrShortArgument) {
		t.Fatalf("expected ErrShortArgument, got %v", err)
	}
}

func TestDecodeArgsShortString(t *testing.T) {
	payload, _ := EncodeArgs([]Arg{Uint(16)})
	payload = append(payload, 'a', 'b', 'c', 0)
	_, err := DecodeArgs(payload, []ArgKind{ArgString})
	if !errors.Is(err, ErrShortArgument) {
		t.Fatalf("expected ErrShortArgument, got %v", err)
	}
}

func TestDecodeArgsUnterminatedString(t *testing.T) {
	payload, _ := EncodeArgs([]Arg{Uint(4)})
	payload = append(payload, 'a', 'b', 'c', 'd')
	_, err := DecodeArgs(payload, []ArgKind{ArgString})
	if !errors.Is(err, ErrUnterminatedString) {
		t.Fatalf("expected ErrUnterminatedString, got %v", err)
	}
}

func TestDecodeArgsTrailingBytes(t *testing.T) {
	payload, _ := EncodeArgs([]Arg{Uint(1), Uint(2)})
	_, err := DecodeArgs(payload, []ArgKind{ArgUint})
	if !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}

func TestDecodeArgsFDConsumesNoBytes(t *testing.T) {
	payload, _ := EncodeArgs([]Arg{Uint(5)})
	out, err := DecodeArgs(payload, []ArgKind{ArgFD, ArgUint})
	if err != nil {
		t.Fatalf("decode args: %v", err)
	}
	if len(out) != 2 || out[1].Word != 5 {
		t.Fatalf("unexpected args: %+v", out)
	}
}
