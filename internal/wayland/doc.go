// Package wayland owns the client side of one compositor connection.
//
// Ownership boundary:
// - socket path resolution and the single connect attempt
// - object identity allocation and the per-object handler table
// - the registry dispatcher and its global state
// - roundtrip (sync marker) pumping
//
// Wire framing lives in internal/protocol/wire; interface signatures live in
// internal/protocol/schema.
package wayland
