package telephony

// EventType is the normalized event the binding hands to its sink. The
// coordinator consumes these and never sees raw SDK callbacks.
type EventType string

const (
	EventDeviceReady EventType = "device_ready"
	EventDeviceError EventType = "device_error"
	// EventDeviceLost means a ready device dropped its registration.
	EventDeviceLost EventType = "device_lost"

	EventRinging      EventType = "ringing"
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventCallError    EventType = "call_error"
	EventIncoming     EventType = "incoming"
)

type Event struct {
	Type EventType

	// SessionID is the provider session id when known.
	SessionID string

	// Handle is the call leg the event belongs to, if any.
	Handle Call

	Err error
}

func handleSID(c Call) string {
	if c == nil {
		return ""
	}
	return c.SID()
}
