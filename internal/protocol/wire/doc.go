// Package wire owns the Wayland wire format.
//
// Ownership boundary:
// - message header framing (object id, opcode, size)
// - argument encode/decode for the fixed argument kinds
// - NUL-terminated string conversion at the byte boundary
//
// File descriptors travel out-of-band on the socket and are not handled here.
package wire
