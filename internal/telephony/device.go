package telephony

import (
	"context"
	"errors"
)

var (
	ErrDeviceNotInitialized = errors.New("telephony: device not initialized")
	ErrDeviceNotReady       = errors.New("telephony: device not ready")
	ErrHoldUnsupported      = errors.New("telephony: hold not supported by this call")
	ErrDestroyed            = errors.New("telephony: binding destroyed during initialization")
)

// DeviceEventKind names the raw callbacks a vendor softphone SDK fires.
type DeviceEventKind string

const (
	DeviceReady        DeviceEventKind = "ready"
	DeviceRegistered   DeviceEventKind = "registered"
	DeviceUnregistered DeviceEventKind = "unregistered"
	DeviceError        DeviceEventKind = "error"
	DeviceIncoming     DeviceEventKind = "incoming"

	CallRinging      DeviceEventKind = "ringing"
	CallAccepted     DeviceEventKind = "accept"
	CallDisconnected DeviceEventKind = "disconnect"
	CallCanceled     DeviceEventKind = "cancel"
	CallFailed       DeviceEventKind = "call_error"
)

// DeviceEvent is one raw SDK callback. Call is set for call-scoped kinds.
type DeviceEvent struct {
	Kind DeviceEventKind
	Call Call
	Err  error
}

// Device is the vendor softphone client: one registered endpoint that can
// place and receive call legs.
//
// Rules:
// - Listen must be called before Register; events fired during Register
//   are delivered.
// - Listener callbacks may arrive on any goroutine.
type Device interface {
	Listen(fn func(DeviceEvent))
	Register(ctx context.Context) error
	IsRegistered() bool
	Connect(ctx context.Context, params map[string]string) (Call, error)
	DisconnectAll()
	Destroy()
}

// Call is one provider call leg.
type Call interface {
	// SID is the provider session id; it may be empty until the provider
	// assigns one.
	SID() string
	Mute(muted bool)
	SendDigits(digits string) error
	Accept() error
	Disconnect() error
}

// Holder is implemented by calls whose provider supports hold.
type Holder interface {
	Hold(on bool) error
}

// DeviceFactory constructs an unregistered device from a session token.
type DeviceFactory func(ctx context.Context, token string) (Device, error)
