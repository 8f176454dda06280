package wire

import (
	"bytes"
	"errors"
)

var ErrUnterminatedString = errors.New("wire: string missing NUL terminator")

// CString decodes a NUL-terminated byte sequence, excluding the terminator.
// Bytes after the first NUL are ignored.
func CString(b []byte) (string, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", ErrUnterminatedString
	}
	return string(b[:i]), nil
}

// AppendCString appends s followed by a NUL terminator.
func AppendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}
