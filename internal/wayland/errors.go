package wayland

import (
	"errors"
	"fmt"
)

var (
	ErrConfigurationMissing    = errors.New("wayland: configuration missing")
	ErrTransportUnavailable    = errors.New("wayland: transport unavailable")
	ErrProtocolHandshakeFailed = errors.New("wayland: protocol handshake failed")
	ErrMalformedEvent          = errors.New("wayland: malformed event")
	ErrConsistencyViolation    = errors.New("wayland: protocol consistency violation")
	ErrRoundtripFailed         = errors.New("wayland: roundtrip failed")
	ErrProtocolError           = errors.New("wayland: compositor reported protocol error")
	ErrUnexpectedDestroy       = errors.New("wayland: object destroyed outside teardown")
	ErrClosed                  = errors.New("wayland: connection closed")
	ErrIDsExhausted            = errors.New("wayland: object ids exhausted")
	ErrUnknownGlobal           = errors.New("wayland: unknown global")
	ErrVersionUnsupported      = errors.New("wayland: version not supported by global")
)

const (
	ViolationDuplicateName = "duplicate_name"
	ViolationUnknownName   = "unknown_name"
)

// ConsistencyError reports a registry event that contradicts the tracked
// state. It is recoverable: the connection keeps running.
type ConsistencyError struct {
	Kind      string
	Name      uint32
	Interface string
}

func (e *ConsistencyError) Error() string {
	switch e.Kind {
	case ViolationDuplicateName:
		return fmt.Sprintf("wayland: global name=%d advertised twice (now %q)", e.Name, e.Interface)
	case ViolationUnknownName:
		return fmt.Sprintf("wayland: global_remove for unknown name=%d", e.Name)
	default:
		return fmt.Sprintf("wayland: consistency violation kind=%s name=%d", e.Kind, e.Name)
	}
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistencyViolation
}

// ProtocolError is a wl_display.error sent by the compositor. It is fatal.
type ProtocolError struct {
	ObjectID ObjectID
	Code     uint32
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: protocol error object=%d code=%d: %s", e.ObjectID, e.Code, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocolError
}
