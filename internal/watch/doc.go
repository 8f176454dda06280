// Package watch owns the HTTP surface over a live registry.
//
// Ownership boundary:
// - health and readiness reporting for the dispatch pump
// - global snapshots and interface lookups
// - streaming registry changes to WebSocket subscribers
// - metrics exposition
//
// Watch never writes to the compositor connection; it only reads registry
// state and receives applied events from the pump goroutine.
package watch
